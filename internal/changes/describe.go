package changes

import (
	"github.com/blackmichael/graph-listings/internal/graph"
)

// DescribeDiff classifies every mutated soul in a batch and folds the result
// into per-thing deltas. Returns nil when the batch touches nothing this
// engine tabulates.
//
// Vote deltas are counted from the keys present in the mutation payload, not
// by diffing against prior state, so replaying the same vote batch twice
// double-counts. Exactly-once delivery of vote batches is the feed's
// responsibility.
func DescribeDiff(diff graph.Data) Changes {
	out := make(Changes)

	for soul, node := range diff {
		if soul == "" || node == nil {
			continue
		}

		if thingID, ok := graph.ParseVotesUpSoul(soul); ok {
			ups := len(node.Values)
			d := out.delta(thingID)
			d.Up += ups
			d.Score += ups
			continue
		}

		if thingID, ok := graph.ParseVotesDownSoul(soul); ok {
			downs := len(node.Values)
			d := out.delta(thingID)
			d.Down += downs
			d.Score -= downs
			continue
		}

		if thingID, ok := graph.ParseThingDataSoul(soul); ok {
			body := node.String("body")
			replyToID := node.String("replyToId")
			if replyToID != "" && IsCommand(body) {
				cmd := BuildCommandMap(node.String("authorId"), thingID, body, node.Float("timestamp"))
				parent := out.delta(replyToID)
				parent.Commands = MergeLeft(parent.Commands, cmd)
			}
			continue
		}

		if thingID, ok := graph.ParseThingSoul(soul); ok {
			timestamp := int64(node.Float("timestamp"))
			if timestamp == 0 {
				continue
			}

			d := out.delta(thingID)
			d.Created = timestamp
			if timestamp > d.Updated {
				d.Updated = timestamp
			}

			if opSoul := node.Edge("op"); opSoul != "" {
				if opID, ok := graph.ParseThingSoul(opSoul); ok {
					op := out.delta(opID)
					op.Comment++
					if timestamp > op.Updated {
						op.Updated = timestamp
					}
				}
			}

			if replySoul := node.Edge("replyTo"); replySoul != "" {
				if replyToID, ok := graph.ParseThingSoul(replySoul); ok {
					out.delta(replyToID).Replies++
				}
			}
			continue
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
