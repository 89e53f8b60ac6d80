package wizard

import "strings"

// Lookup resolves a dot-separated path against structured input.
// A missing or non-object intermediate node resolves to (nil, false).
func Lookup(input map[string]any, path string) (any, bool) {
	if input == nil || path == "" {
		return nil, false
	}

	var current any = input
	for _, key := range strings.Split(path, ".") {
		node, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetPath returns a copy of input with value stored at path. Objects along the
// path are copied; input itself is never mutated. Intermediate nodes that are
// missing or not objects are replaced by new objects.
func SetPath(input map[string]any, path string, value any) map[string]any {
	if path == "" {
		return CloneTree(input)
	}
	return setPath(input, strings.Split(path, "."), value)
}

func setPath(node map[string]any, keys []string, value any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}

	head := keys[0]
	if len(keys) == 1 {
		out[head] = CloneValue(value)
		return out
	}

	child, _ := asObject(node[head])
	out[head] = setPath(child, keys[1:], value)
	return out
}

// Merge deep-merges src into dst and returns the result as a new tree.
// Nested objects are merged key by key; any other src value replaces the dst value.
func Merge(dst, src map[string]any) map[string]any {
	out := CloneTree(dst)
	if out == nil {
		out = make(map[string]any, len(src))
	}
	for k, sv := range src {
		srcObj, srcIsObj := asObject(sv)
		dstObj, dstIsObj := asObject(out[k])
		if srcIsObj && dstIsObj {
			out[k] = Merge(dstObj, srcObj)
			continue
		}
		out[k] = CloneValue(sv)
	}
	return out
}

// CloneTree deep-copies a structured input tree.
func CloneTree(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies JSON-shaped values; scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneTree(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
