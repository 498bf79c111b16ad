package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString decodes upstream JSON fields that are sometimes a bare string
// and sometimes an object of the form {"Value": "..."}. It normalizes both
// shapes at the boundary so call sites never duck-type.
type FlexString string

// String returns the textual payload regardless of the original JSON shape.
func (f FlexString) String() string {
	return string(f)
}

// UnmarshalJSON accepts either "text" or {"Value": "text"}. Null decodes to
// the empty string.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case '{':
		var wrapped struct {
			Value string `json:"Value"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*f = FlexString(wrapped.Value)
		return nil
	}
	return fmt.Errorf("flexstring: cannot decode %s", data)
}

// MarshalJSON always emits the plain-string shape.
func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}
