package deckgen

import "testing"

func TestExtractArtifactURLPriority(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"pdfUrl wins", map[string]any{"url": "u", "pdfUrl": "p", "fileUrl": "f"}, "p"},
		{"export before file", map[string]any{"fileUrl": "f", "exportUrl": "e"}, "e"},
		{"blank skipped", map[string]any{"pdfUrl": "  ", "downloadUrl": "d"}, "d"},
		{"gamma last", map[string]any{"gammaUrl": "g"}, "g"},
		{"nested output", map[string]any{"output": map[string]any{"fileUrl": "of"}}, "of"},
		{"nested result", map[string]any{"result": map[string]any{"url": "ru"}}, "ru"},
		{"top level before nested", map[string]any{"gammaUrl": "g", "output": map[string]any{"pdfUrl": "op"}}, "g"},
		{"non string ignored", map[string]any{"pdfUrl": 7}, ""},
		{"none", map[string]any{"status": "done"}, ""},
	}
	for _, tc := range cases {
		if got := ExtractArtifactURL(tc.body); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestStatusSetClassify(t *testing.T) {
	s := NewStatusSet(nil, nil)
	for _, raw := range []string{"completed", "DONE", " success ", "succeeded", "finished"} {
		if s.Classify(raw) != StateSucceeded {
			t.Fatalf("%q should be success", raw)
		}
	}
	for _, raw := range []string{"failed", "error", "cancelled", "Canceled"} {
		if s.Classify(raw) != StateFailed {
			t.Fatalf("%q should be failure", raw)
		}
	}
	for _, raw := range []string{"", "queued", "rendering", "mystery"} {
		if s.Classify(raw) != StatePending {
			t.Fatalf("%q should be pending", raw)
		}
	}

	custom := NewStatusSet([]string{"ready"}, nil)
	if custom.Classify("ready") != StateSucceeded || custom.Classify("completed") != StatePending {
		t.Fatalf("custom success set not honoured")
	}
}

func TestDocumentID(t *testing.T) {
	cases := map[string]string{
		"https://gamma.app/docs/Buoyancy-Control-abc123": "abc123",
		"https://gamma.app/docs/xyz789/":                 "xyz789",
		"https://gamma.app/":                             "",
	}
	for in, want := range cases {
		if got := documentID(in); got != want {
			t.Fatalf("documentID(%q) = %q want %q", in, got, want)
		}
	}
}
