package rpcio

import "fmt"

// decodeString/decodeInt/etc read a loosely-typed JSON-decoded args map,
// the shape every transport (MCP, HTTP, a CLI's flag parser) hands this
// package. Grounded on the teacher's internal/tools/core tool Execute
// functions, which read the same map[string]any args shape with plain type
// assertions rather than a reflection-based binder.

func decodeString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func decodeStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		if ss, ok := args[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func decodeInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func decodeFloat(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func decodeBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// decodeFeatureMap reads a JSON object of entity-id -> list-of-strings, the
// shape submit_features/submit_synthesis take (spec.md §4.6 "json map:
// entity_id -> feature-list").
func decodeFeatureMap(args map[string]any, key string) (map[string][]string, error) {
	raw, ok := args[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("rpcio: %q must be a JSON object of id -> string list", key)
	}
	out := make(map[string][]string, len(raw))
	for id, v := range raw {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("rpcio: %q[%q] must be a list of strings", key, id)
		}
		strs := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				strs = append(strs, s)
			}
		}
		out[id] = strs
	}
	return out, nil
}

// decodeStringMap reads a JSON object of string -> string, the shape
// submit_hierarchy/submit_routing take.
func decodeStringMap(args map[string]any, key string) (map[string]string, error) {
	raw, ok := args[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("rpcio: %q must be a JSON object of string -> string", key)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rpcio: %q[%q] must be a string", key, k)
		}
		out[k] = s
	}
	return out, nil
}
