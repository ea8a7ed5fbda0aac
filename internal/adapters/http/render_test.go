package httpadapter

import (
	"strings"
	"testing"
)

func TestRenderMarkdown(t *testing.T) {
	out := renderMarkdown("**KDV** oranı:\n\n| Oran | Kapsam |\n|---|---|\n| %20 | genel |\n\n<script>x</script>")

	if !strings.Contains(out, "<strong>KDV</strong>") {
		t.Errorf("expected bold text, got %q", out)
	}
	if !strings.Contains(out, "<table>") {
		t.Errorf("expected a table, got %q", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML must not pass through, got %q", out)
	}
}
