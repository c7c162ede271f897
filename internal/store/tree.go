package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// reserved characters may not appear in a path segment.
const reserved = ".#$[]"

// SplitPath validates path and returns its segments.
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, reserved) || strings.TrimSpace(s) != s {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// docKey returns the document key ("rooms/<id>") and the remaining segments
// inside that document.
func docKey(path string) (string, []string, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return "", nil, err
	}
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("%w: %q is above document level", ErrInvalidPath, path)
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}

// normalizeValue converts an arbitrary Go value into the JSON tree form
// (map[string]any, []any, float64, string, bool) the backends store.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return prune(out), nil
}

// prune removes empty objects and nil leaves. It returns nil when nothing
// is left.
func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		child = prune(child)
		if child == nil {
			delete(m, k)
			continue
		}
		m[k] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func lookup(doc map[string]any, rest []string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	var cur any = doc
	for _, seg := range rest {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// assign sets value at rest inside doc, creating intermediate objects and
// pruning any that become empty. It returns the new document, nil when the
// document ends up empty.
func assign(doc map[string]any, rest []string, value any) map[string]any {
	if len(rest) == 0 {
		m, _ := value.(map[string]any)
		return m
	}
	if doc == nil {
		doc = map[string]any{}
	}
	var out any = setIn(doc, rest, value)
	out = prune(out)
	m, _ := out.(map[string]any)
	return m
}

func setIn(node map[string]any, rest []string, value any) map[string]any {
	key := rest[0]
	if len(rest) == 1 {
		if value == nil {
			delete(node, key)
		} else {
			node[key] = value
		}
		return node
	}
	child, ok := node[key].(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		child = map[string]any{}
	}
	node[key] = setIn(child, rest[1:], value)
	return node
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = cloneValue(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = cloneValue(c)
		}
		return out
	default:
		return v
	}
}

type update struct {
	path  string
	rest  []string
	value any
}

// groupUpdates validates a multi-path update and groups it per document.
// Within a document updates are ordered shallow first so a parent write never
// clobbers a deeper one from the same call.
func groupUpdates(updates map[string]any) (map[string][]update, []string, error) {
	if len(updates) == 0 {
		return nil, nil, nil
	}
	groups := map[string][]update{}
	for path, raw := range updates {
		key, rest, err := docKey(path)
		if err != nil {
			return nil, nil, err
		}
		value, err := normalizeValue(raw)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) == 0 && value != nil {
			if _, ok := value.(map[string]any); !ok {
				return nil, nil, fmt.Errorf("%w: document %q must be an object", ErrInvalidValue, key)
			}
		}
		groups[key] = append(groups[key], update{path: path, rest: rest, value: value})
	}
	keys := make([]string, 0, len(groups))
	for key, ups := range groups {
		sort.Slice(ups, func(i, j int) bool {
			if len(ups[i].rest) != len(ups[j].rest) {
				return len(ups[i].rest) < len(ups[j].rest)
			}
			return ups[i].path < ups[j].path
		})
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return groups, keys, nil
}

func applyUpdates(doc map[string]any, ups []update) map[string]any {
	for _, u := range ups {
		doc = assign(doc, u.rest, cloneValue(u.value))
	}
	return doc
}

func encodeDoc(doc map[string]any) ([]byte, error) {
	return json.Marshal(doc)
}

func decodeDoc(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// childKeys lists the keys directly under the first path segment.
func childKeys(docKeys []string, prefix string) []string {
	out := make([]string, 0, len(docKeys))
	for _, k := range docKeys {
		if id, ok := strings.CutPrefix(k, prefix+"/"); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func objectKeys(v any) []string {
	m, ok := v.(map[string]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
