package timing

import (
	"strings"
	"testing"
)

func TestChunkRange(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
		want  ChunkRange
	}{
		{
			name:  "empty chunk has zero range",
			chunk: Chunk{},
			want:  ChunkRange{},
		},
		{
			name:  "single word",
			chunk: Chunk{{Word: "Hi", Start: 1.5, End: 2.0}},
			want:  ChunkRange{Start: 1.5, End: 2.0},
		},
		{
			name: "multiple words span first start to last end",
			chunk: Chunk{
				{Word: "Hi", Start: 0, End: 0.5},
				{Word: "there", Start: 0.5, End: 1.0},
			},
			want: ChunkRange{Start: 0, End: 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chunk.Range(); got != tt.want {
				t.Errorf("Range() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "hello"},
		{"Hello,", "hello"},
		{"don't", "don't"},
		{"—dash—", "dash"},
		{"(parens)", "parens"},
		{"42nd", "42nd"},
		{"...", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormattingMapLookup(t *testing.T) {
	m := FormattingMap{
		"hello": StyleBold,
		"world": StyleItalic,
	}

	if got := m.Lookup("Hello,"); got != StyleBold {
		t.Errorf("Lookup(Hello,) = %v, want bold", got)
	}
	if got := m.Lookup("world"); got != StyleItalic {
		t.Errorf("Lookup(world) = %v, want italic", got)
	}
	if got := m.Lookup("missing"); got != StyleNone {
		t.Errorf("Lookup(missing) = %v, want none", got)
	}

	var empty FormattingMap
	if got := empty.Lookup("anything"); got != StyleNone {
		t.Errorf("empty map Lookup = %v, want none", got)
	}
}

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in   string
		want Style
	}{
		{"bold", StyleBold},
		{"italic", StyleItalic},
		{"bold-italic", StyleBoldItalic},
		{"sparkly", StyleNone},
		{"", StyleNone},
	}
	for _, tt := range tests {
		if got := ParseStyle(tt.in); got != tt.want {
			t.Errorf("ParseStyle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodePayload(t *testing.T) {
	src := `{
		"title": "Test Book",
		"audio_url": "test.wav",
		"duration": 12.5,
		"chunks": [
			[{"word":"Hi","start":0,"end":0.5},{"word":"there","start":0.5,"end":1.0}],
			[],
			[{"word":"oops","start":2.0,"end":1.0}]
		],
		"formatting": {"hi":"bold"},
		"chapters": [{"chunk":0,"title":"One"}]
	}`

	p, err := DecodePayload(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.Title != "Test Book" {
		t.Errorf("Title = %q", p.Title)
	}
	if len(p.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(p.Chunks))
	}
	if len(p.Chunks[1]) != 0 {
		t.Error("empty chunk should survive decoding")
	}

	// start > end is clamped to zero length, not rejected.
	w := p.Chunks[2][0]
	if w.End != w.Start {
		t.Errorf("malformed word not clamped: start=%v end=%v", w.Start, w.End)
	}

	m := p.FormattingMap()
	if m.Lookup("Hi") != StyleBold {
		t.Error("formatting map lost the bold entry")
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	if _, err := DecodePayload(strings.NewReader("not json")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestWordCount(t *testing.T) {
	chunks := []Chunk{
		{{Word: "a"}, {Word: "b"}},
		{},
		{{Word: "c"}},
	}
	if got := WordCount(chunks); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
}
