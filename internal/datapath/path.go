// Package datapath resolves and writes reference paths ($, $.a.b, $.a[0],
// $['key']) against workflow data decoded from JSON.
package datapath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const Root = "$"

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrPathConflict = errors.New("path conflicts with existing data")
)

type segment struct {
	key   string
	index int
	isIdx bool
}

func (s segment) String() string {
	if s.isIdx {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return "." + s.key
}

// Path is a parsed reference path. The zero value is the root path.
type Path struct {
	raw  string
	segs []segment
}

func (p Path) String() string {
	if p.raw == "" {
		return Root
	}
	return p.raw
}

// IsRoot reports whether the path addresses the whole document.
func (p Path) IsRoot() bool { return len(p.segs) == 0 }

// MustParse is Parse for paths known to be valid.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse parses a reference path. An empty string is the root path.
func Parse(raw string) (Path, error) {
	if raw == "" || raw == Root {
		return Path{raw: Root}, nil
	}
	if !strings.HasPrefix(raw, Root) {
		return Path{}, fmt.Errorf("%w %q: must start with $", ErrInvalidPath, raw)
	}
	p := Path{raw: raw}
	rest := raw[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			if key == "" {
				return Path{}, fmt.Errorf("%w %q: empty field name", ErrInvalidPath, raw)
			}
			p.segs = append(p.segs, segment{key: key})
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return Path{}, fmt.Errorf("%w %q: unclosed bracket", ErrInvalidPath, raw)
			}
			inner := rest[1:end]
			rest = rest[end+1:]
			if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				p.segs = append(p.segs, segment{key: inner[1 : len(inner)-1]})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("%w %q: bad index %q", ErrInvalidPath, raw, inner)
			}
			p.segs = append(p.segs, segment{index: idx, isIdx: true})
		default:
			return Path{}, fmt.Errorf("%w %q: unexpected %q", ErrInvalidPath, raw, rest[0])
		}
	}
	return p, nil
}

// Get returns the value at the path and whether it exists. It never fails:
// a missing key, an index out of range or a type mismatch report false.
func (p Path) Get(data any) (any, bool) {
	cur := data
	for _, s := range p.segs {
		if s.isIdx {
			arr, ok := cur.([]any)
			if !ok || s.index >= len(arr) {
				return nil, false
			}
			cur = arr[s.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[s.key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a copy of data with value placed at the path. Maps along the
// path are copied, so data itself is never modified and everything outside
// the path is preserved. Missing objects are created; writing through a
// scalar or a missing array element is a conflict.
func (p Path) Set(data any, value any) (any, error) {
	if p.IsRoot() {
		return value, nil
	}
	return p.set(data, 0, value)
}

func (p Path) set(cur any, i int, value any) (any, error) {
	if i == len(p.segs) {
		return value, nil
	}
	s := p.segs[i]
	if s.isIdx {
		arr, ok := cur.([]any)
		if !ok || s.index >= len(arr) {
			return nil, fmt.Errorf("%w: %s at %s", ErrPathConflict, p.raw, s)
		}
		child, err := p.set(arr[s.index], i+1, value)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(arr))
		copy(out, arr)
		out[s.index] = child
		return out, nil
	}
	var obj map[string]any
	switch v := cur.(type) {
	case nil:
		obj = map[string]any{}
	case map[string]any:
		obj = make(map[string]any, len(v)+1)
		for k, val := range v {
			obj[k] = val
		}
	default:
		return nil, fmt.Errorf("%w: %s at %s", ErrPathConflict, p.raw, s)
	}
	child, err := p.set(obj[s.key], i+1, value)
	if err != nil {
		return nil, err
	}
	obj[s.key] = child
	return obj, nil
}
