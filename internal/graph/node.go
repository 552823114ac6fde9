// Package graph models nodes of the decentralized key-value graph this
// service indexes. Every node is addressed by a string soul and carries a
// per-field state timestamp used for last-write-wins merging.
package graph

import (
	"encoding/json"
	"fmt"
)

// Edge is a reference from one node field to another node's soul.
type Edge struct {
	Soul string
}

// Node is a single graph node: a soul, field values and per-field state
// timestamps. Values are strings, float64s, bools or Edges.
type Node struct {
	Soul   string
	Values map[string]any
	State  map[string]float64
}

// Data is a batch of graph nodes keyed by soul, as delivered by the change
// feed or handed to the store.
type Data map[string]*Node

// NewNode creates an empty node for the given soul.
func NewNode(soul string) *Node {
	return &Node{
		Soul:   soul,
		Values: make(map[string]any),
		State:  make(map[string]float64),
	}
}

// Set assigns a field value with its state timestamp.
func (n *Node) Set(field string, value any, state float64) {
	n.Values[field] = value
	n.State[field] = state
}

// String returns the string value of a field, or "" if absent or not a string.
func (n *Node) String(field string) string {
	if n == nil {
		return ""
	}
	s, _ := n.Values[field].(string)
	return s
}

// Float returns the numeric value of a field, or 0 if absent.
func (n *Node) Float(field string) float64 {
	if n == nil {
		return 0
	}
	f, _ := n.Values[field].(float64)
	return f
}

// Int returns the numeric value of a field truncated to an int.
func (n *Node) Int(field string) int {
	return int(n.Float(field))
}

// Edge returns the soul a field points at, or "" if the field is not an edge.
func (n *Node) Edge(field string) string {
	if n == nil {
		return ""
	}
	e, _ := n.Values[field].(Edge)
	return e.Soul
}

// Clone returns a deep copy of the node's value and state maps.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := NewNode(n.Soul)
	for k, v := range n.Values {
		c.Values[k] = v
	}
	for k, s := range n.State {
		c.State[k] = s
	}
	return c
}

// MarshalJSON encodes the node in the wire format: a "_" metadata object
// holding the soul and state map, and one entry per field. Edges become
// {"#": soul} objects.
func (n *Node) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(n.Values)+1)
	raw["_"] = map[string]any{"#": n.Soul, ">": n.State}
	for field, value := range n.Values {
		if e, ok := value.(Edge); ok {
			raw[field] = map[string]any{"#": e.Soul}
		} else {
			raw[field] = value
		}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the wire format. Fields with shapes the node model
// does not understand are dropped rather than treated as errors.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal node: %w", err)
	}

	n.Values = make(map[string]any, len(raw))
	n.State = make(map[string]float64, len(raw))

	if meta, ok := raw["_"]; ok {
		var m struct {
			Soul  string             `json:"#"`
			State map[string]float64 `json:">"`
		}
		if err := json.Unmarshal(meta, &m); err != nil {
			return fmt.Errorf("unmarshal node metadata: %w", err)
		}
		n.Soul = m.Soul
		for field, state := range m.State {
			n.State[field] = state
		}
	}

	for field, rawValue := range raw {
		if field == "_" || field == "" {
			continue
		}

		var value any
		if err := json.Unmarshal(rawValue, &value); err != nil {
			continue
		}

		switch v := value.(type) {
		case string, float64, bool:
			n.Values[field] = v
		case map[string]any:
			if soul, ok := v["#"].(string); ok {
				n.Values[field] = Edge{Soul: soul}
			}
		}
	}

	return nil
}

// Merge folds src into dst field by field; a field only moves when its state
// is strictly newer than what dst already holds. Returns the number of fields
// that changed.
func Merge(dst, src *Node) int {
	changed := 0
	for field, value := range src.Values {
		state := src.State[field]
		if existing, ok := dst.State[field]; ok && existing >= state {
			continue
		}
		dst.Values[field] = value
		dst.State[field] = state
		changed++
	}
	return changed
}

// Diff returns the subset of incoming whose field states advance past base.
// A nil base node passes the whole incoming node through. Returns nil when
// nothing advances.
func Diff(incoming Data, base Data) Data {
	var out Data
	for soul, node := range incoming {
		baseNode := base[soul]
		var diffNode *Node
		for field, value := range node.Values {
			state := node.State[field]
			if baseNode != nil {
				if existing, ok := baseNode.State[field]; ok && existing >= state {
					continue
				}
			}
			if diffNode == nil {
				diffNode = NewNode(soul)
			}
			diffNode.Set(field, value, state)
		}
		if diffNode != nil {
			if out == nil {
				out = make(Data)
			}
			out[soul] = diffNode
		}
	}
	return out
}

// MergeData folds every node of src into dst, creating nodes as needed.
func MergeData(dst Data, src Data) {
	for soul, node := range src {
		existing, ok := dst[soul]
		if !ok {
			dst[soul] = node.Clone()
			continue
		}
		Merge(existing, node)
	}
}
