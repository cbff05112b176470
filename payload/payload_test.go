package payload

import (
	"errors"
	"testing"
)

const doc = `{"user":{"name":"ada","age":36},"tags":["a","b"]}`

func TestGet(t *testing.T) {
	res, ok := Get(doc, "user.name")
	if !ok || res.String() != "ada" {
		t.Errorf("Get(user.name) = %v, %v", res, ok)
	}

	if _, ok := Get(doc, "user.missing"); ok {
		t.Error("missing path should report not found")
	}
	if _, ok := Get(42, "user.name"); ok {
		t.Error("non-JSON payload should report not found")
	}
}

func TestField(t *testing.T) {
	v, ok := Field([]byte(doc), "user.age")
	if !ok || v != float64(36) {
		t.Errorf("Field(user.age) = %v, %v", v, ok)
	}

	if got := StringField(doc, "user.name"); got != "ada" {
		t.Errorf("StringField = %q", got)
	}
	if got := StringField(doc, "nope"); got != "" {
		t.Errorf("missing StringField = %q, want empty", got)
	}
}

func TestSetPreservesKind(t *testing.T) {
	out, err := Set(doc, "user.name", "grace")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s, ok := out.(string)
	if !ok {
		t.Fatalf("string input should produce string output, got %T", out)
	}
	if StringField(s, "user.name") != "grace" {
		t.Errorf("Set did not apply: %s", s)
	}

	outB, err := Set([]byte(doc), "user.age", 37)
	if err != nil {
		t.Fatalf("Set bytes failed: %v", err)
	}
	if _, ok := outB.([]byte); !ok {
		t.Fatalf("[]byte input should produce []byte output, got %T", outB)
	}

	if _, err := Set(42, "x", 1); !errors.Is(err, ErrNotJSON) {
		t.Errorf("expected ErrNotJSON, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	out, err := Delete(doc, "user.age")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := Get(out, "user.age"); ok {
		t.Error("deleted field should be gone")
	}
}

func TestRequireFields(t *testing.T) {
	v := RequireFields("user.name", "user.age")

	if err := v(doc); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
	if err := v(`{"user":{"name":"ada"}}`); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	if err := v(struct{}{}); !errors.Is(err, ErrNotJSON) {
		t.Errorf("expected ErrNotJSON, got %v", err)
	}
}

func TestFieldEquals(t *testing.T) {
	v := FieldEquals("user.name", "ada")

	if err := v(doc); err != nil {
		t.Errorf("matching field rejected: %v", err)
	}
	if err := v(`{"user":{"name":"bob"}}`); err == nil {
		t.Error("mismatched field should be rejected")
	}
	if err := v(`{}`); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}
