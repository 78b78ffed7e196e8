package article_test

import (
	"testing"

	"scholardigest/internal/article"
)

func TestHashKeyIgnoresCaseAndWhitespace(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "case", a: "Foo Bar", b: "foo bar"},
		{name: "inner spaces", a: "Foo  Bar", b: "foo bar"},
		{name: "surrounding", a: "  Quantum Catalysis Advances\n", b: "quantum catalysis advances"},
		{name: "unicode", a: "ÉTUDE Des Matériaux", b: "étude des matériaux"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if article.HashKey(tt.a) != article.HashKey(tt.b) {
				t.Fatalf("expected equal keys for %q and %q", tt.a, tt.b)
			}
		})
	}
}

func TestHashKeyDistinguishesTitles(t *testing.T) {
	a := article.HashKey("Graph neural networks for catalysis")
	b := article.HashKey("Graph neural networks for catalysts")
	if a == b {
		t.Fatal("expected distinct keys for distinct titles")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashKeyStable(t *testing.T) {
	// sha256("foo bar")
	const want = "fbc1a9f858ea9e177916964bd88c3d37b91a1e84412765e29950777f265c4b75"
	if got := article.HashKey("Foo Bar"); got != want {
		t.Fatalf("HashKey = %s, want %s", got, want)
	}
}
