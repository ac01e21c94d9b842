package models

import (
	"encoding/json"
)

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// extraFields adds every top-level key of raw that is not in known to into.
func extraFields(raw []byte, known map[string]struct{}, into map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return into, err
	}
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if into == nil {
			into = make(map[string]json.RawMessage)
		}
		into[k] = v
	}
	return into, nil
}

// withExtra merges extra keys into an encoded object. Known keys win.
func withExtra(encoded []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return encoded, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := all[k]; !exists {
			all[k] = v
		}
	}
	return json.Marshal(all)
}
