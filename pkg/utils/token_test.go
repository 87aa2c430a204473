package utils

import (
	"strings"
	"testing"
)

func TestGenerateURLTokenIsURLSafe(t *testing.T) {
	tok, err := GenerateURLToken(24)
	if err != nil {
		t.Fatalf("GenerateURLToken: %v", err)
	}
	// 24 random bytes encode to 32 unpadded base64url characters.
	if len(tok) != 32 {
		t.Fatalf("token length = %d, want 32", len(tok))
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token %q contains non-URL-safe characters", tok)
	}
}

func TestGenerateURLTokenIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateURLToken(24)
		if err != nil {
			t.Fatalf("GenerateURLToken: %v", err)
		}
		if seen[tok] {
			t.Fatalf("token %q generated twice", tok)
		}
		seen[tok] = true
	}
}

func TestIsValidID(t *testing.T) {
	if !IsValidID(NewID()) {
		t.Fatal("NewID should produce a valid id")
	}
	for _, id := range []string{"", "not-a-uuid", "12345"} {
		if IsValidID(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
}
