package tools

import "testing"

func TestParseKeyValues(t *testing.T) {
	out := "Title:          Chapter 3 Review\n" +
		"Creator:        Adobe InDesign 18.0 (Macintosh)\n" +
		"Producer:       Adobe PDF Library 17.0\n" +
		"CreationDate:   Tue Mar  5 10:12:01 2024 UTC\n" +
		"garbage line without separator\n" +
		"Creator:        duplicate\n" +
		":no key\n"

	got := ParseKeyValues(out)
	if got["creator"] != "Adobe InDesign 18.0 (Macintosh)" {
		t.Fatalf("unexpected creator %q", got["creator"])
	}
	if got["producer"] != "Adobe PDF Library 17.0" {
		t.Fatalf("unexpected producer %q", got["producer"])
	}
	if got["creationdate"] != "Tue Mar  5 10:12:01 2024 UTC" {
		t.Fatalf("value with colons not preserved: %q", got["creationdate"])
	}
	if got["title"] != "Chapter 3 Review" {
		t.Fatalf("unexpected title %q", got["title"])
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 keys, got %d: %v", len(got), got)
	}
}

func TestParseKeyValuesEmpty(t *testing.T) {
	if got := ParseKeyValues(""); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}
