// Package compose implements the step interpreter: mapping-DSL
// normalization, input assembly, invocation, and output application.
package compose

import (
	"bytes"
	"encoding/json"
)

// Step is an immutable record describing one component invocation. Field
// names mirror the wire vocabulary: "in" rather than "inputs" is the JSON
// key, carried over unchanged from the source compose document format.
type Step struct {
	Call        string         `json:"call"`
	Inputs      map[string]any `json:"in,omitempty"`
	Out         map[string]any `json:"out,omitempty"`
	CollectPath string         `json:"collectPath,omitempty"`
	Children    *StepChildren  `json:"children,omitempty"`
	Slots       *StepChildren  `json:"slots,omitempty"`
}

// StepChildren is either a flat step list (the default slot) or a named
// mapping of slot name to step list. Exactly one of List/Map is non-nil.
type StepChildren struct {
	List []Step
	Map  map[string][]Step
}

func (c *StepChildren) UnmarshalJSON(data []byte) error {
	var list []Step
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&list); err == nil {
		c.List = list
		return nil
	}
	var m map[string][]Step
	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return err
	}
	c.Map = m
	return nil
}

func (c StepChildren) MarshalJSON() ([]byte, error) {
	if c.List != nil {
		return json.Marshal(c.List)
	}
	return json.Marshal(c.Map)
}

// stepToValue serializes a Step back into a generic, json.Number-tagged
// tree for meta["children"]/meta["slots"] introspection payloads.
func stepToValue(s Step) any {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
