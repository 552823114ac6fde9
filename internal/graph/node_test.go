package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeJSONRoundTrip(t *testing.T) {
	n := NewNode("nab/things/abc")
	n.Set("kind", "submission", 100)
	n.Set("timestamp", float64(1700000000000), 100)
	n.Set("topic", Edge{Soul: "nab/topics/news"}, 100)

	raw, err := json.Marshal(n)
	require.NoError(t, err)

	decoded := &Node{}
	require.NoError(t, json.Unmarshal(raw, decoded))

	assert.Equal(t, "nab/things/abc", decoded.Soul)
	assert.Equal(t, "submission", decoded.String("kind"))
	assert.Equal(t, float64(1700000000000), decoded.Float("timestamp"))
	assert.Equal(t, "nab/topics/news", decoded.Edge("topic"))
	assert.Equal(t, float64(100), decoded.State["kind"])
}

func TestUnmarshalDropsUnknownShapes(t *testing.T) {
	raw := `{"_":{"#":"soul",">":{"a":1,"b":2}},"a":"ok","b":[1,2,3]}`

	n := &Node{}
	require.NoError(t, json.Unmarshal([]byte(raw), n))

	assert.Equal(t, "ok", n.String("a"))
	_, present := n.Values["b"]
	assert.False(t, present, "array values should be dropped")
}

func TestMergeNewerStateWins(t *testing.T) {
	dst := NewNode("soul")
	dst.Set("a", "old", 100)
	dst.Set("b", "keep", 200)

	src := NewNode("soul")
	src.Set("a", "new", 150)
	src.Set("b", "stale", 150)

	changed := Merge(dst, src)

	assert.Equal(t, 1, changed)
	assert.Equal(t, "new", dst.String("a"))
	assert.Equal(t, "keep", dst.String("b"))
	assert.Equal(t, float64(150), dst.State["a"])
}

func TestMergeEqualStateDoesNotMove(t *testing.T) {
	dst := NewNode("soul")
	dst.Set("a", "first", 100)

	src := NewNode("soul")
	src.Set("a", "second", 100)

	assert.Equal(t, 0, Merge(dst, src))
	assert.Equal(t, "first", dst.String("a"))
}

func TestDiff(t *testing.T) {
	base := make(Data)
	baseNode := NewNode("soul")
	baseNode.Set("a", "x", 100)
	baseNode.Set("b", "y", 100)
	base["soul"] = baseNode

	incoming := make(Data)
	node := NewNode("soul")
	node.Set("a", "x2", 150)
	node.Set("b", "stale", 50)
	incoming["soul"] = node

	other := NewNode("other")
	other.Set("c", "z", 10)
	incoming["other"] = other

	diff := Diff(incoming, base)
	require.NotNil(t, diff)

	require.Contains(t, diff, "soul")
	assert.Equal(t, "x2", diff["soul"].String("a"))
	_, hasB := diff["soul"].Values["b"]
	assert.False(t, hasB)

	require.Contains(t, diff, "other")
	assert.Equal(t, "z", diff["other"].String("c"))
}

func TestDiffNilWhenNothingAdvances(t *testing.T) {
	base := make(Data)
	node := NewNode("soul")
	node.Set("a", "x", 100)
	base["soul"] = node

	incoming := make(Data)
	stale := NewNode("soul")
	stale.Set("a", "old", 50)
	incoming["soul"] = stale

	assert.Nil(t, Diff(incoming, base))
}

func TestThingGraphDeterministicID(t *testing.T) {
	rec := &ThingRecord{
		Kind:      "submission",
		Topic:     "News",
		Title:     "hello",
		Timestamp: 1700000000000,
	}

	_, id1 := ThingGraph(rec)
	_, id2 := ThingGraph(rec)
	assert.Equal(t, id1, id2)

	rec.Title = "changed"
	_, id3 := ThingGraph(rec)
	assert.NotEqual(t, id1, id3)
}

func TestThingGraphEdges(t *testing.T) {
	rec := &ThingRecord{
		Kind:      "comment",
		Topic:     "news",
		Body:      "a reply",
		AuthorID:  "authorKey",
		OpID:      "op123",
		ReplyToID: "parent456",
		Timestamp: 1700000000000,
	}

	data, id := ThingGraph(rec)
	require.Len(t, data, 2)

	thing := data[ThingSoul(id)]
	require.NotNil(t, thing)
	assert.Equal(t, ThingSoul("op123"), thing.Edge("op"))
	assert.Equal(t, ThingSoul("parent456"), thing.Edge("replyTo"))
	assert.Equal(t, TopicSoul("news"), thing.Edge("topic"))
	assert.Equal(t, AuthorSoul("authorKey"), thing.Edge("author"))
	assert.Equal(t, VotesUpSoul(id), thing.Edge("votesup"))

	content := data[ThingDataSignedSoul(id, "authorKey")]
	require.NotNil(t, content)
	assert.Equal(t, "a reply", content.String("body"))
}

func TestVoteGraph(t *testing.T) {
	data := VoteGraph("abc", true, []string{"n1", "n2"}, 1700000000000)

	node := data[VotesUpSoul("abc")]
	require.NotNil(t, node)
	assert.Len(t, node.Values, 2)
	assert.Equal(t, "1", node.String("n1"))
}
