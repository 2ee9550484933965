package datapath

import (
	"fmt"
	"sort"
	"strings"
)

// RefSuffix marks a template key whose string value is a path into the input.
const RefSuffix = ".$"

// Render assembles a template against input. Keys ending in ".$" are
// replaced by the key without the suffix and the value found at the path;
// every other value is copied as a literal. A reference to a missing path
// is an error.
func Render(tmpl any, input any) (any, error) {
	switch t := tmpl.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if strings.HasSuffix(k, RefSuffix) {
				ref, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("template field %q: reference must be a string path", k)
				}
				p, err := Parse(ref)
				if err != nil {
					return nil, fmt.Errorf("template field %q: %w", k, err)
				}
				val, found := p.Get(input)
				if !found {
					return nil, fmt.Errorf("template field %q: path %s not found in input", k, ref)
				}
				out[strings.TrimSuffix(k, RefSuffix)] = DeepCopy(val)
				continue
			}
			rendered, err := Render(v, input)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rendered, err := Render(v, input)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return tmpl, nil
	}
}

// TemplateRefs returns every reference path used in a template, for
// validation at load time.
func TemplateRefs(tmpl any) []string {
	var refs []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, val := range t {
				if strings.HasSuffix(k, RefSuffix) {
					if s, ok := val.(string); ok {
						refs = append(refs, s)
					} else {
						refs = append(refs, fmt.Sprint(val))
					}
					continue
				}
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(tmpl)
	return refs
}

// TemplateCollisions returns the output keys that a template sets twice, once
// as a literal "k" and once as a reference "k.$". Render would keep whichever
// it visits last.
func TemplateCollisions(tmpl any) []string {
	var keys []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, val := range t {
				if strings.HasSuffix(k, RefSuffix) {
					if _, dup := t[strings.TrimSuffix(k, RefSuffix)]; dup {
						keys = append(keys, strings.TrimSuffix(k, RefSuffix))
					}
					continue
				}
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(tmpl)
	sort.Strings(keys)
	return keys
}
