package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidSessionEvent(t *testing.T) {
	data := []byte(`{"session_id":"s1","type":"phase_generated","data":"eyJmb28iOiJiYXIifQ=="}`)
	if err := Validate(SessionEventSubject("s1"), data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SessionEventSubject("s1"), data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	data := []byte(`"just a string"`)
	err := Validate(SessionEventSubject("s1"), data)
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected 'schema validation failed' in error, got: %v", err)
	}
}

func TestValidateEmptyJSON(t *testing.T) {
	data := []byte(`{}`)
	if err := Validate(SessionEventSubject("s1"), data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
