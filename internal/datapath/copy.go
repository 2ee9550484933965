package datapath

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// DeepCopy copies maps and slices recursively. Scalars are shared.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		return v
	}
}

// Normalize converts an arbitrary Go value into the generic JSON tree
// (map[string]any, []any, float64, string, bool, nil) used as workflow data.
// Numbers are float64, so an integer float64 cannot hold exactly (beyond
// 2^53) is an error rather than a silently rounded value.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize data: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize data: %w", err)
	}
	return toFloats(out)
}

func toFloats(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			f, err := toFloats(val)
			if err != nil {
				return nil, err
			}
			t[k] = f
		}
		return t, nil
	case []any:
		for i, val := range t {
			f, err := toFloats(val)
			if err != nil {
				return nil, err
			}
			t[i] = f
		}
		return t, nil
	case json.Number:
		return numberValue(t)
	default:
		return v, nil
	}
}

func numberValue(n json.Number) (float64, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("normalize data: number %s: %w", n, err)
	}
	if strings.ContainsAny(n.String(), ".eE") {
		return f, nil
	}
	exact, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return 0, fmt.Errorf("normalize data: number %s is not an integer", n)
	}
	if rounded, _ := big.NewFloat(f).Int(nil); rounded.Cmp(exact) != 0 {
		return 0, fmt.Errorf("normalize data: integer %s cannot be represented exactly as a JSON number", n)
	}
	return f, nil
}
