package changes

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustValue(t *testing.T, in any) Value {
	t.Helper()
	v, err := FromAny(in)
	if err != nil {
		t.Fatalf("from any: %v", err)
	}
	return v
}

func TestComputeEqualIsEmpty(t *testing.T) {
	record := map[string]any{
		"title":  "Quality manual",
		"count":  3,
		"tags":   []any{"iso", 9001},
		"owner":  map[string]any{"id": "u-1", "roles": []any{"owner"}},
		"absent": nil,
	}
	a := mustValue(t, record)
	b := mustValue(t, record)

	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if diff == nil {
		t.Fatalf("expected empty non-nil diff")
	}
	if len(diff) != 0 {
		t.Fatalf("expected empty diff, got %v", diff.Fields())
	}
}

func TestComputeSingleField(t *testing.T) {
	a := mustValue(t, map[string]any{"status": "DRAFT", "title": "Manual"})
	b := mustValue(t, map[string]any{"status": "IN_REVIEW", "title": "Manual"})

	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(diff) != 1 {
		t.Fatalf("expected exactly one change, got %v", diff.Fields())
	}
	change, ok := diff["status"]
	if !ok {
		t.Fatalf("expected status change")
	}
	if change.Before.Str() != "DRAFT" || change.After.Str() != "IN_REVIEW" {
		t.Fatalf("unexpected change %+v", change)
	}
}

func TestComputeArraysAreOpaque(t *testing.T) {
	a := mustValue(t, map[string]any{"items": []any{1, 2}})
	b := mustValue(t, map[string]any{"items": []any{1, 2, 3}})

	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	change, ok := diff["items"]
	if !ok || change.IsNested() {
		t.Fatalf("expected whole-array leaf change, got %+v", diff)
	}
	if !change.Before.Equal(Array(Int(1), Int(2))) {
		t.Fatalf("unexpected before %v", change.Before.ToAny())
	}
	if !change.After.Equal(Array(Int(1), Int(2), Int(3))) {
		t.Fatalf("unexpected after %v", change.After.ToAny())
	}
}

func TestComputeNestedObjects(t *testing.T) {
	a := mustValue(t, map[string]any{
		"meta":  map[string]any{"classification": "internal", "owner": "u-1"},
		"stats": map[string]any{"views": 1},
	})
	b := mustValue(t, map[string]any{
		"meta":  map[string]any{"classification": "public", "owner": "u-1"},
		"stats": map[string]any{"views": 1},
	})

	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if _, ok := diff["stats"]; ok {
		t.Fatalf("deep-equal nested object must be omitted")
	}
	meta, ok := diff["meta"]
	if !ok || !meta.IsNested() {
		t.Fatalf("expected nested change for meta, got %+v", diff)
	}
	if len(meta.Nested) != 1 {
		t.Fatalf("expected one nested change, got %v", meta.Nested.Fields())
	}
	if got := meta.Nested["classification"].After.Str(); got != "public" {
		t.Fatalf("expected public, got %q", got)
	}
	if got := diff.String(); got != "meta.classification" {
		t.Fatalf("expected flattened path, got %q", got)
	}
}

func TestComputeAbsentEqualsNull(t *testing.T) {
	a := mustValue(t, map[string]any{"next_review_date": nil})
	b := mustValue(t, map[string]any{})

	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(diff) != 0 {
		t.Fatalf("expected absent and null to compare equal, got %v", diff.Fields())
	}
}

func TestComputeFromNullListsEveryField(t *testing.T) {
	after := mustValue(t, map[string]any{"status": "DRAFT", "version": "1.0"})
	diff, err := Compute(Null(), after)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(diff) != 2 {
		t.Fatalf("expected two fields, got %v", diff.Fields())
	}
	if !diff["version"].Before.IsNull() {
		t.Fatalf("expected null before for created field")
	}
}

func TestComputeRejectsNonObjects(t *testing.T) {
	if _, err := Compute(String("x"), Null()); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestComputeDoesNotMutateInputs(t *testing.T) {
	source := map[string]any{"tags": []any{"a"}}
	a := mustValue(t, source)
	b := mustValue(t, map[string]any{"tags": []any{"a", "b"}})
	if _, err := Compute(a, b); err != nil {
		t.Fatalf("compute: %v", err)
	}
	tags, _ := a.Field("tags")
	if tags.Len() != 1 {
		t.Fatalf("input mutated: %v", tags.ToAny())
	}
}

func TestFromAnyCycleGuard(t *testing.T) {
	cyclic := map[string]any{"name": "loop"}
	cyclic["self"] = cyclic
	if _, err := FromAny(cyclic); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestComputeDepthGuard(t *testing.T) {
	deepA, deepB := Null(), Null()
	for i := 0; i <= MaxDepth+1; i++ {
		deepA = Object(map[string]Value{"child": deepA})
		deepB = Object(map[string]Value{"child": deepB})
	}
	deepB = Object(map[string]Value{"child": deepB})
	if _, err := Compute(deepA, deepB); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestRecordsFromStructs(t *testing.T) {
	type record struct {
		Title  string   `json:"title"`
		Tags   []string `json:"tags"`
		Status string   `json:"status"`
	}
	diff, err := Records(record{Title: "A", Status: "DRAFT"}, record{Title: "A", Status: "APPROVED"})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(diff) != 1 || diff["status"].After.Str() != "APPROVED" {
		t.Fatalf("unexpected diff %v", diff.Fields())
	}
}

func TestDiffJSONRoundTrip(t *testing.T) {
	a := mustValue(t, map[string]any{"status": "DRAFT", "meta": map[string]any{"owner": "u-1"}})
	b := mustValue(t, map[string]any{"status": "APPROVED", "meta": map[string]any{"owner": "u-2"}})
	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	raw, err := json.Marshal(diff)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"meta":{"nested":{"owner":{"before":"u-1","after":"u-2"}}},"status":{"before":"DRAFT","after":"APPROVED"}}`
	if string(raw) != want {
		t.Fatalf("unexpected json %s", raw)
	}

	var decoded Diff
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded["meta"].IsNested() || decoded["meta"].Nested["owner"].After.Str() != "u-2" {
		t.Fatalf("unexpected decoded diff %+v", decoded)
	}
	if decoded["status"].Before.Str() != "DRAFT" {
		t.Fatalf("unexpected decoded status %+v", decoded["status"])
	}
}

func TestDiffJSONRoundTripFieldsNamedLikeTheEnvelope(t *testing.T) {
	a := mustValue(t, map[string]any{"meta": map[string]any{"before": 1, "after": 2, "nested": "x"}})
	b := mustValue(t, map[string]any{"meta": map[string]any{"before": 3, "after": 4, "nested": "y"}})
	diff, err := Compute(a, b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	first, err := json.Marshal(diff)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Diff
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	meta := decoded["meta"]
	if !meta.IsNested() || len(meta.Nested) != 3 {
		t.Fatalf("expected nested diff over before/after/nested, got %+v", meta)
	}
	if meta.Nested["after"].Before.Num() != 2 || meta.Nested["after"].After.Num() != 4 {
		t.Fatalf("unexpected after field change %+v", meta.Nested["after"])
	}
	second, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("json changed across a round trip:\n%s\n%s", first, second)
	}
}

func TestChangeUnmarshalRejectsUnknownShape(t *testing.T) {
	var decoded Diff
	if err := json.Unmarshal([]byte(`{"status":{"before":"A"}}`), &decoded); err == nil {
		t.Fatalf("expected error for a change without after")
	}
}
