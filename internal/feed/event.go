package feed

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/graph-listings/internal/graph"
)

// changeEvent is one raw change feed entry: an ordered cursor key and the
// graph mutation batch written at that point.
type changeEvent struct {
	Key string                     `json:"key"`
	Put map[string]json.RawMessage `json:"put"`
}

// subscribeRequest opens a feed subscription resuming after a cursor.
type subscribeRequest struct {
	ID   string `json:"id"`
	From string `json:"from,omitempty"`
}

// parseEvent decodes a feed message into a cursor key and mutation batch.
// Nodes that fail to decode are dropped rather than failing the entry.
func parseEvent(data []byte) (string, graph.Data, error) {
	var raw changeEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("unmarshal event: %w", err)
	}

	diff := make(graph.Data, len(raw.Put))
	for soul, rawNode := range raw.Put {
		if soul == "" || len(rawNode) == 0 {
			continue
		}
		node := graph.NewNode(soul)
		if err := json.Unmarshal(rawNode, node); err != nil {
			continue
		}
		node.Soul = soul
		diff[soul] = node
	}

	return raw.Key, diff, nil
}
