// Package changes interprets raw graph mutation batches into per-thing
// tabulation deltas.
package changes

import "encoding/json"

// CommandNode is one level of a command tag tree: either a leaf timestamp or
// a map of child tokens.
type CommandNode struct {
	Timestamp float64
	Children  map[string]*CommandNode
}

// CommandMap records moderation command tags, keyed by the tagging author id
// and then by command tokens.
type CommandMap map[string]*CommandNode

// Delta is the typed change extracted for one thing from a mutation batch.
// Count fields are increments, not totals.
type Delta struct {
	Up       int
	Down     int
	Score    int
	Comment  int
	Replies  int
	Created  int64
	Updated  int64
	Commands CommandMap
}

// Changes maps thing ids to their deltas for one mutation batch.
type Changes map[string]*Delta

func (c Changes) delta(thingID string) *Delta {
	d, ok := c[thingID]
	if !ok {
		d = &Delta{}
		c[thingID] = d
	}
	return d
}

// MergeLeft folds src into dst without overwriting: existing entries in dst
// win on conflict, src only fills gaps. Returns dst (allocated when nil).
func MergeLeft(dst, src CommandMap) CommandMap {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(CommandMap, len(src))
	}
	for key, srcNode := range src {
		dstNode, ok := dst[key]
		if !ok {
			dst[key] = srcNode.clone()
			continue
		}
		mergeNodeLeft(dstNode, srcNode)
	}
	return dst
}

func mergeNodeLeft(dst, src *CommandNode) {
	if src.Children == nil {
		// Leaf vs existing entry: first seen wins.
		return
	}
	if dst.Children == nil {
		return
	}
	for key, srcChild := range src.Children {
		dstChild, ok := dst.Children[key]
		if !ok {
			dst.Children[key] = srcChild.clone()
			continue
		}
		mergeNodeLeft(dstChild, srcChild)
	}
}

func (n *CommandNode) clone() *CommandNode {
	c := &CommandNode{Timestamp: n.Timestamp}
	if n.Children != nil {
		c.Children = make(map[string]*CommandNode, len(n.Children))
		for key, child := range n.Children {
			c.Children[key] = child.clone()
		}
	}
	return c
}

// MarshalJSON encodes a leaf as its timestamp and a branch as an object.
func (n *CommandNode) MarshalJSON() ([]byte, error) {
	if n.Children == nil {
		return json.Marshal(n.Timestamp)
	}
	return json.Marshal(n.Children)
}

// UnmarshalJSON accepts either a bare timestamp or a nested object.
func (n *CommandNode) UnmarshalJSON(data []byte) error {
	var ts float64
	if err := json.Unmarshal(data, &ts); err == nil {
		n.Timestamp = ts
		n.Children = nil
		return nil
	}
	return json.Unmarshal(data, &n.Children)
}

// ParseCommandMap decodes a command map from its stored JSON form. Malformed
// input yields a nil map rather than an error.
func ParseCommandMap(raw string) CommandMap {
	if raw == "" {
		return nil
	}
	var m CommandMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// EncodeCommandMap renders a command map to the JSON form stored in counter
// nodes.
func EncodeCommandMap(m CommandMap) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Authors returns the distinct tagging author ids recorded in the map,
// excluding the anonymous author.
func (m CommandMap) Authors() []string {
	if len(m) == 0 {
		return nil
	}
	authors := make([]string, 0, len(m))
	for authorID := range m {
		if authorID != AnonAuthor {
			authors = append(authors, authorID)
		}
	}
	return authors
}
