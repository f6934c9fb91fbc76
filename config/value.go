package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is a loosely typed tool configuration value
type Value struct {
	raw any
}

// NewValue wraps v
func NewValue(v any) Value {
	return Value{raw: v}
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v.raw = raw
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (v Value) MarshalYAML() (any, error) {
	return v.raw, nil
}

// Raw returns the underlying decoded value
func (v Value) Raw() any {
	return v.raw
}

// String returns the value formatted as a string
func (v Value) String() string {
	switch x := v.raw.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Int returns the value as an int, 0 if it is not numeric
func (v Value) Int() int {
	switch x := v.raw.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool returns the value as a bool
func (v Value) Bool() bool {
	switch x := v.raw.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

// IsMap reports whether the value is a mapping
func (v Value) IsMap() bool {
	_, ok := v.raw.(map[string]any)
	return ok
}

// Map returns the value as a map of Values, nil if it is not a mapping
func (v Value) Map() map[string]Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = Value{raw: item}
	}
	return out
}
