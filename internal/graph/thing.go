package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ThingRecord is the content of a thing at submission time. Things are
// immutable once created; the id is derived from the content itself.
type ThingRecord struct {
	Kind      string `json:"kind"`
	Topic     string `json:"topic,omitempty"`
	Domain    string `json:"domain,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
	OpID      string `json:"opId,omitempty"`
	ReplyToID string `json:"replyToId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ContentHash returns the content-derived hash of the record's data fields.
func (t *ThingRecord) ContentHash() string {
	return hashJSON(t)
}

// ID returns the content-derived thing id, binding the identifying fields
// and the content hash together.
func (t *ThingRecord) ID() string {
	return hashJSON(map[string]any{
		"timestamp":    t.Timestamp,
		"kind":         t.Kind,
		"topic":        t.Topic,
		"authorId":     t.AuthorID,
		"opId":         t.OpID,
		"replyToId":    t.ReplyToID,
		"originalHash": t.ContentHash(),
	})
}

// ThingGraph builds the graph nodes a new thing writes: the thing reference
// node with its edges, and the content record. Returns the batch and the
// thing id.
func ThingGraph(t *ThingRecord) (Data, string) {
	thingID := t.ID()
	ts := float64(t.Timestamp)

	var dataSoul string
	if t.AuthorID != "" {
		dataSoul = ThingDataSignedSoul(thingID, t.AuthorID)
	} else {
		dataSoul = ThingDataSoul(t.ContentHash())
	}

	thing := NewNode(ThingSoul(thingID))
	thing.Set("id", thingID, ts)
	thing.Set("kind", t.Kind, ts)
	thing.Set("timestamp", ts, ts)
	thing.Set("originalHash", t.ContentHash(), ts)
	thing.Set("data", Edge{Soul: dataSoul}, ts)
	thing.Set("votesup", Edge{Soul: VotesUpSoul(thingID)}, ts)
	thing.Set("votesdown", Edge{Soul: VotesDownSoul(thingID)}, ts)
	if t.Topic != "" {
		thing.Set("topic", Edge{Soul: TopicSoul(strings.ToLower(t.Topic))}, ts)
	}
	if t.AuthorID != "" {
		thing.Set("author", Edge{Soul: AuthorSoul(t.AuthorID)}, ts)
	}
	if t.OpID != "" {
		thing.Set("op", Edge{Soul: ThingSoul(t.OpID)}, ts)
	}
	if t.ReplyToID != "" {
		thing.Set("replyTo", Edge{Soul: ThingSoul(t.ReplyToID)}, ts)
	}

	data := NewNode(dataSoul)
	data.Set("kind", t.Kind, ts)
	data.Set("timestamp", ts, ts)
	if t.Topic != "" {
		data.Set("topic", strings.ToLower(t.Topic), ts)
	}
	if t.Domain != "" {
		data.Set("domain", strings.ToLower(t.Domain), ts)
	}
	if t.URL != "" {
		data.Set("url", t.URL, ts)
	}
	if t.Title != "" {
		data.Set("title", t.Title, ts)
	}
	if t.Body != "" {
		data.Set("body", t.Body, ts)
	}
	if t.AuthorID != "" {
		data.Set("authorId", t.AuthorID, ts)
	}
	if t.OpID != "" {
		data.Set("opId", t.OpID, ts)
	}
	if t.ReplyToID != "" {
		data.Set("replyToId", t.ReplyToID, ts)
	}

	return Data{thing.Soul: thing, data.Soul: data}, thingID
}

// VoteGraph builds the vote-collection patch adding the given nonces to a
// thing's up or down votes.
func VoteGraph(thingID string, up bool, nonces []string, timestamp int64) Data {
	soul := VotesDownSoul(thingID)
	if up {
		soul = VotesUpSoul(thingID)
	}
	node := NewNode(soul)
	for _, nonce := range nonces {
		node.Set(nonce, "1", float64(timestamp))
	}
	return Data{soul: node}
}

func hashJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// All inputs are plain maps and structs of scalars.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
