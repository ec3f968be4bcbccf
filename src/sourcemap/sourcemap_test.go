package sourcemap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVLQRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, -1, 15, 16, -16, 31, 32, 1000, -123456} {
		enc := string(appendVLQ(nil, v))
		got, next, err := readVLQ(enc, 0)
		if err != nil {
			t.Fatalf("readVLQ(%q): %v", enc, err)
		}
		if got != v || next != len(enc) {
			t.Errorf("round trip %d: got %d (consumed %d of %d)", v, got, next, len(enc))
		}
	}
}

func TestReadVLQErrors(t *testing.T) {
	if _, _, err := readVLQ("g", 0); err == nil {
		t.Error("truncated continuation accepted")
	}
	if _, _, err := readVLQ("!", 0); err == nil {
		t.Error("invalid character accepted")
	}
}

func TestIdentityMapsEveryLine(t *testing.T) {
	m := Identity("theme/js/app.js", []byte("a\nb\nc"))
	lines, err := m.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, segs := range lines {
		want := []Segment{{GenCol: 0, Source: 0, OrigLine: i, OrigCol: 0, Name: -1}}
		if diff := cmp.Diff(want, segs); diff != "" {
			t.Errorf("line %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestConcatOffsetsLines(t *testing.T) {
	a := []byte("var a;\nvar a2;")
	b := []byte("var b;")
	c := []byte("var c;\n")
	parts := []Part{
		{Map: Identity("js/a.js", a), Content: a},
		{Map: Identity("js/b.js", b), Content: b},
		{Map: nil, Content: c},
	}
	m, err := Concat("libs.js", parts, "\n")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"js/a.js", "js/b.js"}, m.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		line     int
		source   string
		origLine int
		ok       bool
	}{
		{0, "js/a.js", 0, true},
		{1, "js/a.js", 1, true},
		{2, "js/b.js", 0, true},
		{3, "", 0, false},
	}
	for _, tt := range tests {
		src, orig, ok := m.Lookup(tt.line)
		if src != tt.source || orig != tt.origLine || ok != tt.ok {
			t.Errorf("Lookup(%d) = %q, %d, %v; want %q, %d, %v", tt.line, src, orig, ok, tt.source, tt.origLine, tt.ok)
		}
	}
}

func TestConcatDedupesSources(t *testing.T) {
	x := []byte("x")
	m, err := Concat("out.js", []Part{
		{Map: Identity("same.js", x), Content: x},
		{Map: Identity("same.js", x), Content: x},
	}, "\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Sources) != 1 || len(m.SourcesContent) != 1 {
		t.Errorf("sources = %v, want one entry", m.Sources)
	}
}

func TestInlineRoundTrip(t *testing.T) {
	m := Identity("scss/site.scss", []byte("body{}"))
	inlined, err := Inline([]byte("body{}"), m, true)
	if err != nil {
		t.Fatal(err)
	}

	content, got, err := ExtractInline(inlined)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "body{}\n" {
		t.Errorf("content = %q", content)
	}
	if got == nil {
		t.Fatal("inline map not extracted")
	}
	if diff := cmp.Diff(m.Sources, got.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if got.Mappings != m.Mappings {
		t.Errorf("mappings = %q, want %q", got.Mappings, m.Mappings)
	}
}

func TestExtractInlineExternalURL(t *testing.T) {
	in := []byte("var a;\n//# sourceMappingURL=a.js.map\n")
	orig := string(in)
	content, m, err := ExtractInline(in)
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("got map for external url")
	}
	if string(content) != "var a;\n" {
		t.Errorf("content = %q", content)
	}
	if string(in) != orig {
		t.Errorf("input mutated: %q", in)
	}
}

func TestExtractInlineNoComment(t *testing.T) {
	in := []byte("a {}\n")
	content, m, err := ExtractInline(in)
	if err != nil || m != nil || string(content) != "a {}\n" {
		t.Errorf("ExtractInline = %q, %v, %v", content, m, err)
	}
}

func TestComment(t *testing.T) {
	if got := Comment("x.map", true); got != "/*# sourceMappingURL=x.map */" {
		t.Errorf("css comment = %q", got)
	}
	if got := Comment("x.map", false); got != "//# sourceMappingURL=x.map" {
		t.Errorf("js comment = %q", got)
	}
}
