package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/monsters-club/lounge/internal/types"
)

// Normalize converts fields into plain JSON values (float64 numbers,
// []any lists, map[string]any objects) and deep-copies them.
func Normalize(fields types.Fields) (types.Fields, error) {
	if fields == nil {
		return types.Fields{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("fields are not JSON encodable: %w", err)
	}
	var out types.Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = types.Fields{}
	}
	return out, nil
}

// Merge applies patch over the top-level keys of base and returns the
// result. Neither argument is modified.
func Merge(base, patch types.Fields) types.Fields {
	out := base.Clone()
	for key, value := range patch {
		out[key] = value
	}
	return out
}

// ToggleMember returns a copy of fields with member toggled in the string
// set at fields[field][key].
func ToggleMember(fields types.Fields, field, key, member string) (types.Fields, error) {
	out := fields.Clone()
	sets := map[string]any{}
	if raw, ok := fields[field]; ok && raw != nil {
		existing, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q is not an object", field)
		}
		for k, v := range existing {
			sets[k] = v
		}
	}

	var members []any
	if raw, ok := sets[key]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("field %q.%q is not a list", field, key)
		}
		members = list
	}

	next := make([]any, 0, len(members)+1)
	found := false
	for _, m := range members {
		if m == member {
			found = true
			continue
		}
		next = append(next, m)
	}
	if !found {
		next = append(next, member)
	}
	if len(next) == 0 {
		delete(sets, key)
	} else {
		sets[key] = next
	}
	out[field] = sets
	return out, nil
}
