package format

import (
	"bytes"
	"testing"
)

func TestJSONFormatterKeepsURLsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	payload := map[string]string{"url": "https://example.org/get?id=1&sig=a<b>"}
	if err := (JSONFormatter{}).Write(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{"url":"https://example.org/get?id=1&sig=a<b>"}` + "\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestJSONFormatterIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{Indent: "  "}).Write(&buf, map[string]int{"size": 11}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "{\n  \"size\": 11\n}\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}
