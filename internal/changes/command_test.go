package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("!remove spam"))
	assert.True(t, IsCommand("!tag funny\nsecond line"))
	assert.False(t, IsCommand("plain comment"))
	assert.False(t, IsCommand("! not a command"))
	assert.False(t, IsCommand(""))
	assert.False(t, IsCommand("no !command mid-body"))
}

func TestTokenizeCommand(t *testing.T) {
	assert.Equal(t, []string{"tag", "funny"}, TokenizeCommand("!tag funny"))
	assert.Equal(t, []string{"tag", "funny"}, TokenizeCommand("!tag  funny \nignored line"))
	assert.Equal(t, []string{"remove"}, TokenizeCommand("!remove"))
}

func TestBuildCommandMap(t *testing.T) {
	m := BuildCommandMap("authorKey", "thing1", "!tag funny", 123)
	require.NotNil(t, m)

	root := m["authorKey"]
	require.NotNil(t, root)
	tag := root.Children["tag"]
	require.NotNil(t, tag)
	funny := tag.Children["funny"]
	require.NotNil(t, funny)
	leaf := funny.Children["thing1"]
	require.NotNil(t, leaf)
	assert.Equal(t, float64(123), leaf.Timestamp)
	assert.Nil(t, leaf.Children)
}

func TestBuildCommandMapAnonymousAuthor(t *testing.T) {
	m := BuildCommandMap("", "thing1", "!remove", 5)
	require.NotNil(t, m)
	require.NotNil(t, m[AnonAuthor])
	assert.Nil(t, m[""])
}

func TestBuildCommandMapTruncatesDepth(t *testing.T) {
	m := BuildCommandMap("authorKey", "thing1", "!a b c d e f g", 1)
	require.NotNil(t, m)

	depth := 0
	node := m["authorKey"]
	for node != nil {
		depth++
		var next *CommandNode
		for _, child := range node.Children {
			next = child
		}
		node = next
	}
	assert.Equal(t, 6, depth)
}

func TestBuildCommandMapNonCommand(t *testing.T) {
	assert.Nil(t, BuildCommandMap("authorKey", "thing1", "just a comment", 1))
}

func TestMergeLeftExistingWins(t *testing.T) {
	existing := BuildCommandMap("authorKey", "thing1", "!tag funny", 100)
	incoming := BuildCommandMap("authorKey", "thing1", "!tag funny", 200)

	merged := MergeLeft(existing, incoming)

	leaf := merged["authorKey"].Children["tag"].Children["funny"].Children["thing1"]
	require.NotNil(t, leaf)
	assert.Equal(t, float64(100), leaf.Timestamp)
}

func TestMergeLeftFillsGaps(t *testing.T) {
	existing := BuildCommandMap("authorKey", "thing1", "!tag funny", 100)
	incoming := BuildCommandMap("otherKey", "thing2", "!remove", 200)

	merged := MergeLeft(existing, incoming)

	assert.NotNil(t, merged["authorKey"])
	require.NotNil(t, merged["otherKey"])
	assert.NotNil(t, merged["otherKey"].Children["remove"].Children["thing2"])
}

func TestMergeLeftNilDst(t *testing.T) {
	src := BuildCommandMap("authorKey", "thing1", "!tag", 1)
	merged := MergeLeft(nil, src)
	require.NotNil(t, merged)
	assert.NotNil(t, merged["authorKey"])
}

func TestCommandMapJSONRoundTrip(t *testing.T) {
	m := BuildCommandMap("authorKey", "thing1", "!tag funny", 42)

	encoded := EncodeCommandMap(m)
	require.NotEmpty(t, encoded)

	decoded := ParseCommandMap(encoded)
	require.NotNil(t, decoded)
	leaf := decoded["authorKey"].Children["tag"].Children["funny"].Children["thing1"]
	require.NotNil(t, leaf)
	assert.Equal(t, float64(42), leaf.Timestamp)
}

func TestParseCommandMapMalformed(t *testing.T) {
	assert.Nil(t, ParseCommandMap(""))
	assert.Nil(t, ParseCommandMap("{not json"))
}

func TestAuthorsExcludesAnon(t *testing.T) {
	m := BuildCommandMap("", "thing1", "!remove", 1)
	m = MergeLeft(m, BuildCommandMap("authorKey", "thing2", "!tag", 2))

	authors := m.Authors()
	assert.Equal(t, []string{"authorKey"}, authors)
}
