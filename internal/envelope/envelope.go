// Package envelope unwraps the list payloads of the channel-management API.
//
// The API answers list endpoints in one of three shapes:
//
//	[ ... ]                         a bare list
//	{"results": [ ... ], ...}       a paginated envelope
//	{"<anything>": [ ... ], ...}    the first list-valued entry is the payload
//
// Object keys are walked in document order so "first" is well defined.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotList = errors.New("payload is neither a list nor an object")

// Items returns the raw elements of the list carried by payload, in order.
// An object without any list-valued entry yields no items.
func Items(payload []byte) ([]json.RawMessage, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrNotList
	}
	switch payload[0] {
	case '[':
		return decodeList(payload)
	case '{':
		list, err := pickList(payload)
		if err != nil {
			return nil, err
		}
		if list == nil {
			return nil, nil
		}
		return decodeList(list)
	default:
		return nil, ErrNotList
	}
}

func decodeList(raw []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

// pickList prefers "results" and otherwise the first list-valued entry.
func pickList(obj []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	var first json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode envelope key: %w", err)
		}
		key, _ := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("decode envelope value %q: %w", key, err)
		}
		if !isList(val) {
			continue
		}
		if key == "results" {
			return val, nil
		}
		if first == nil {
			first = val
		}
	}
	return first, nil
}

func isList(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}
