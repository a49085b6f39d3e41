package main

import (
	"testing"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"2b0f3c1e-8d4a-4c1e-9f2a-1a2b3c4d5e6f", "7c9e6679-7425-40de-944b-e07fc1f90ae7"})
	if err != nil || len(ids) != 2 {
		t.Fatalf("parseIDs: err=%v len=%d", err, len(ids))
	}
	if _, err := parseIDs([]string{"not-a-uuid"}); err == nil {
		t.Fatalf("expected error for invalid id")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"audit": false, "podcast": false, "pdf": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestPodcastRequiresOneArg(t *testing.T) {
	if err := podcastCmd.Args(podcastCmd, nil); err == nil {
		t.Fatalf("expected arg validation error")
	}
	if err := pdfCmd.Args(pdfCmd, nil); err == nil {
		t.Fatalf("expected arg validation error for pdf")
	}
}
