package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalJSON accepts "w1" as well as 101.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

// MarshalJSON encodes the window as [start, end].
func (w BusyWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{w.Start, w.End})
}

// UnmarshalJSON accepts [start, end] or {"start": s, "end": e}.
func (w *BusyWindow) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []int
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("busy window needs 2 values, got %d", len(pair))
		}
		w.Start, w.End = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Start *int `json:"start"`
		End   *int `json:"end"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Start == nil || obj.End == nil {
		return fmt.Errorf("busy window needs start and end")
	}
	w.Start, w.End = *obj.Start, *obj.End
	return nil
}

// MarshalYAML encodes the window as a flow sequence [start, end].
func (w BusyWindow) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []int{w.Start, w.End} {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)})
	}
	return node, nil
}

// UnmarshalYAML accepts [start, end] or a {start, end} mapping.
func (w *BusyWindow) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var pair []int
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: busy window needs 2 values, got %d", node.Line, len(pair))
		}
		w.Start, w.End = pair[0], pair[1]
	case yaml.MappingNode:
		var obj struct {
			Start *int `yaml:"start"`
			End   *int `yaml:"end"`
		}
		if err := node.Decode(&obj); err != nil {
			return err
		}
		if obj.Start == nil || obj.End == nil {
			return fmt.Errorf("line %d: busy window needs start and end", node.Line)
		}
		w.Start, w.End = *obj.Start, *obj.End
	default:
		return fmt.Errorf("line %d: busy window must be a sequence or a mapping", node.Line)
	}
	return nil
}
