package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// toStrictJSON prepares raw config bytes for the strict JSON decoder in
// Parse. Files named *.yaml / *.yml go through a yaml pass first; anything
// else is assumed to already be JSON. Funneling both formats through one
// decoder keeps DisallowUnknownFields authoritative for both.
func toStrictJSON(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	b, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// stringKeys rewrites yaml's map[any]any nodes into map[string]any so the
// tree survives json.Marshal. Values like `9:` as a key become "9".
func stringKeys(node any) any {
	switch v := node.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range v {
			v[k] = stringKeys(val)
		}
		return v
	case []any:
		for i, val := range v {
			v[i] = stringKeys(val)
		}
		return v
	default:
		return node
	}
}
