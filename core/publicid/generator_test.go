package publicid

import (
	"strings"
	"testing"
)

func TestGenerateFormat(t *testing.T) {
	g := NewGenerator()
	id, err := g.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(id, Prefix) {
		t.Fatalf("missing prefix: %s", id)
	}
	token := strings.TrimPrefix(id, Prefix)
	if len(token) != 26 {
		t.Fatalf("expected 26-char token, got %d (%s)", len(token), token)
	}
	for _, r := range token {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567", r) {
			t.Fatalf("unexpected character %q in %s", r, token)
		}
	}
}

func TestGenerateUniqueness(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := g.Generate()
		if err != nil {
			t.Fatalf("generate #%d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d draws: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateFailsOnBrokenSource(t *testing.T) {
	g := &Generator{rand: strings.NewReader("short")}
	if _, err := g.Generate(); err == nil {
		t.Fatal("expected error from exhausted entropy source")
	}
}
