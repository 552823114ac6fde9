package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	message := []byte(`{
		"key": "0001700000000000",
		"put": {
			"nab/things/abc": {
				"_": {"#": "nab/things/abc", ">": {"kind": 100, "timestamp": 100}},
				"kind": "submission",
				"timestamp": 1700000000000,
				"topic": {"#": "nab/topics/news"}
			}
		}
	}`)

	key, diff, err := parseEvent(message)
	require.NoError(t, err)
	assert.Equal(t, "0001700000000000", key)

	node := diff["nab/things/abc"]
	require.NotNil(t, node)
	assert.Equal(t, "submission", node.String("kind"))
	assert.Equal(t, "nab/topics/news", node.Edge("topic"))
}

func TestParseEventDropsBadNodes(t *testing.T) {
	message := []byte(`{
		"key": "k1",
		"put": {
			"": {"x": 1},
			"good": {"_": {"#": "good", ">": {"a": 1}}, "a": "ok"},
			"bad": "not a node"
		}
	}`)

	key, diff, err := parseEvent(message)
	require.NoError(t, err)
	assert.Equal(t, "k1", key)

	assert.Len(t, diff, 1)
	assert.Equal(t, "ok", diff["good"].String("a"))
}

func TestParseEventMalformedMessage(t *testing.T) {
	_, _, err := parseEvent([]byte("{not json"))
	assert.Error(t, err)
}
