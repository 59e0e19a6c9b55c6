package changes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Change is one differing field. Leaf changes carry Before and After; when
// both sides are objects the change is Nested instead.
type Change struct {
	Before Value
	After  Value
	Nested Diff
}

func (c Change) IsNested() bool { return c.Nested != nil }

// Diff maps field name to change. Equal inputs produce an empty Diff.
type Diff map[string]Change

// Compute diffs two record snapshots. Null is treated as the empty record so
// creation and deletion diffs list every field. A field absent on one side
// is compared as null. Arrays are compared as whole values.
func Compute(before, after Value) (Diff, error) {
	if before.kind != KindObject && before.kind != KindNull {
		return nil, fmt.Errorf("%w: before is %s", ErrNotObject, before.kind)
	}
	if after.kind != KindObject && after.kind != KindNull {
		return nil, fmt.Errorf("%w: after is %s", ErrNotObject, after.kind)
	}
	return diffObjects(before.fields, after.fields, 0)
}

// Records snapshots two Go records and diffs them.
func Records(before, after any) (Diff, error) {
	b, err := Snapshot(before)
	if err != nil {
		return nil, err
	}
	a, err := Snapshot(after)
	if err != nil {
		return nil, err
	}
	return Compute(b, a)
}

func diffObjects(before, after map[string]Value, depth int) (Diff, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	out := Diff{}
	for _, key := range unionKeys(before, after) {
		b, a := before[key], after[key]
		if b.kind == KindObject && a.kind == KindObject {
			nested, err := diffObjects(b.fields, a.fields, depth+1)
			if err != nil {
				return nil, err
			}
			if len(nested) > 0 {
				out[key] = Change{Nested: nested}
			}
			continue
		}
		eq, err := equal(b, a, depth+1)
		if err != nil {
			return nil, err
		}
		if !eq {
			out[key] = Change{Before: b, After: a}
		}
	}
	return out, nil
}

func unionKeys(a, b map[string]Value) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]Value{a, b} {
		for k := range m {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Fields returns the changed field names in sorted order.
func (d Diff) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten expands nested changes into dotted paths.
func (d Diff) Flatten() map[string]Change {
	out := map[string]Change{}
	d.flatten("", out)
	return out
}

func (d Diff) flatten(prefix string, out map[string]Change) {
	for key, change := range d {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if change.IsNested() {
			change.Nested.flatten(path, out)
			continue
		}
		out[path] = change
	}
}

// String renders the dotted paths that changed, for log lines.
func (d Diff) String() string {
	flat := d.Flatten()
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return strings.Join(paths, ",")
}

type leafJSON struct {
	Before Value `json:"before"`
	After  Value `json:"after"`
}

type nestedJSON struct {
	Nested Diff `json:"nested"`
}

// MarshalJSON writes a leaf as {"before":..,"after":..} and a nested change
// as {"nested":{...}}, so record fields never collide with the envelope.
func (c Change) MarshalJSON() ([]byte, error) {
	if c.IsNested() {
		return json.Marshal(nestedJSON{Nested: c.Nested})
	}
	return json.Marshal(leafJSON{Before: c.Before, After: c.After})
}

func (c *Change) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("changes: change: %w", err)
	}
	_, hasBefore := raw["before"]
	_, hasAfter := raw["after"]
	_, hasNested := raw["nested"]
	switch {
	case hasBefore && hasAfter && len(raw) == 2:
		var leaf leafJSON
		if err := json.Unmarshal(data, &leaf); err != nil {
			return fmt.Errorf("changes: change: %w", err)
		}
		*c = Change{Before: leaf.Before, After: leaf.After}
		return nil
	case hasNested && len(raw) == 1:
		var nested nestedJSON
		if err := json.Unmarshal(data, &nested); err != nil {
			return fmt.Errorf("changes: change: %w", err)
		}
		if nested.Nested == nil {
			nested.Nested = Diff{}
		}
		*c = Change{Nested: nested.Nested}
		return nil
	default:
		return fmt.Errorf("changes: change: unexpected keys in %s", data)
	}
}

func (d Diff) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		body, err := d[key].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Diff) UnmarshalJSON(data []byte) error {
	var raw map[string]Change
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("changes: diff: %w", err)
	}
	if raw == nil {
		raw = map[string]Change{}
	}
	*d = Diff(raw)
	return nil
}
