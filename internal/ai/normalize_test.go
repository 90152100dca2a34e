package ai

import (
	"reflect"
	"testing"
)

func TestNormalizeEquivalentEnvelopes(t *testing.T) {
	// The same underlying item in the three supported envelope shapes must
	// flatten to the same list.
	want := []map[string]any{{"id": "m1", "summary": "kratak pregled"}}

	cases := []struct {
		name string
		raw  string
	}{
		{"bare array", `[{"id": "m1", "summary": "kratak pregled"}]`},
		{"data wrapper", `{"data": [{"id": "m1", "summary": "kratak pregled"}]}`},
		{"single object", `{"id": "m1", "summary": "kratak pregled"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("items = %#v, want %#v", got, want)
			}
		})
	}
}

func TestNormalizeWrapperKeys(t *testing.T) {
	for _, key := range []string{"emails", "data", "results", "items"} {
		raw := `{"` + key + `": [{"id": "a"}, {"id": "b"}]}`
		got, err := Normalize(raw)
		if err != nil {
			t.Fatalf("key %s: unexpected error: %v", key, err)
		}
		if len(got) != 2 {
			t.Fatalf("key %s: got %d items, want 2", key, len(got))
		}
	}
}

func TestNormalizeStripsCodeFences(t *testing.T) {
	raw := "```json\n[{\"id\": \"m1\"}]\n```"
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "m1" {
		t.Fatalf("items = %#v", got)
	}
}

func TestNormalizeIgnoresSurroundingCommentary(t *testing.T) {
	raw := "Here is the analysis you asked for:\n[{\"id\": \"m1\"}]\nLet me know if you need anything else."
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
}

func TestNormalizeLoneArrayValueFallback(t *testing.T) {
	raw := `{"analize": [{"id": "m1"}, {"id": "m2"}]}`
	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
}

func TestNormalizeMalformedJSONIsError(t *testing.T) {
	if _, err := Normalize(`[{"id": "m1"`); err == nil {
		t.Fatal("expected error for truncated json")
	}
}

func TestNormalizeNoPayloadIsError(t *testing.T) {
	if _, err := Normalize("the model refused to answer"); err == nil {
		t.Fatal("expected error when no json payload is present")
	}
}

func TestNormalizeUnknownShapeIsEmpty(t *testing.T) {
	// Well-formed JSON that matches no shape means zero results, not an error.
	got, err := Normalize(`{"status": "ok", "count": 3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d items, want 0", len(got))
	}
}
