package heuristics

import (
	"strings"
	"testing"

	"uploadscan/config"
)

func sum(hits []Hit) int {
	total := 0
	for _, h := range hits {
		total += h.Delta
	}
	return total
}

func evaluateAll(cfg *config.ScannerConfig, in *Input) []Hit {
	in.Config = cfg
	var hits []Hit
	for _, h := range Default(cfg) {
		hits = append(hits, h.Evaluate(in)...)
	}
	return hits
}

func TestOversized(t *testing.T) {
	cfg := config.DefaultScannerConfig()
	cfg.MaxFileSizeMB = 500

	at := &Input{SizeBytes: 500 * bytesPerMB, Config: cfg}
	if hits := (Oversized{}).Evaluate(at); len(hits) != 0 {
		t.Fatalf("file exactly at the limit must not be flagged: %v", hits)
	}

	over := &Input{SizeBytes: 600 * bytesPerMB, Config: cfg}
	hits := (Oversized{}).Evaluate(over)
	if len(hits) != 1 || hits[0].Delta != 20 || hits[0].Flag != FlagOversized {
		t.Fatalf("unexpected hits %v", hits)
	}
	if !strings.Contains(hits[0].Evidence, "600.00MB") || !strings.Contains(hits[0].Evidence, "500MB") {
		t.Fatalf("evidence should cite measured size and limit: %q", hits[0].Evidence)
	}
	if hits[0].Category != CategoryFileIssues {
		t.Fatalf("unexpected category %q", hits[0].Category)
	}
}

func TestFilenamePatternsAreCumulative(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"lecture-notes.pdf", 0},
		{"answer_key_test.pdf", 15},
		{"SAMPLE.docx", 15},
		{"install.EXE", 15},
		{"demo.sh", 30},
		{"Copyright_trial.cmd", 45},
		{"© notes.pdf", 15},
	}
	for _, c := range cases {
		hits := (Filename{}).Evaluate(&Input{FileName: c.name})
		if got := sum(hits); got != c.want {
			t.Fatalf("%s: expected %d, got %d (%v)", c.name, c.want, got, hits)
		}
		for _, h := range hits {
			if h.Flag != FlagFilename || h.Category != CategoryFileIssues || h.Evidence == "" {
				t.Fatalf("%s: malformed hit %+v", c.name, h)
			}
		}
	}
}

func TestFilenameFallsBackToPath(t *testing.T) {
	hits := (Filename{}).Evaluate(&Input{Path: "/srv/uploads/trial-version.pdf"})
	if sum(hits) != 15 {
		t.Fatalf("expected path basename to be checked, got %v", hits)
	}
}

func TestCopyrightCaseInsensitive(t *testing.T) {
	c := NewCopyright([]string{"Pearson Education", "Chegg", "Course Hero"})
	hits := c.Evaluate(&Input{Text: "PEARSON EDUCATION, INC. and chegg study"})
	if len(hits) != 2 {
		t.Fatalf("expected two matches, got %v", hits)
	}
	if hits[0].Evidence != "Pearson Education" || hits[1].Evidence != "Chegg" {
		t.Fatalf("evidence should use configured phrases in order: %v", hits)
	}
	if sum(hits) != 50 {
		t.Fatalf("expected 50, got %d", sum(hits))
	}
}

func TestCopyrightPhraseCountedOnce(t *testing.T) {
	c := NewCopyright([]string{"Elsevier", "elsevier", " "})
	hits := c.Evaluate(&Input{Text: "Elsevier ... Elsevier ... ELSEVIER"})
	if len(hits) != 1 || hits[0].Delta != 25 {
		t.Fatalf("expected a single hit, got %v", hits)
	}
}

func TestCopyrightNoPhrases(t *testing.T) {
	if hits := NewCopyright(nil).Evaluate(&Input{Text: "Pearson Education"}); hits != nil {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestPublisherPatterns(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"ISBN 978-0-13-468599-1", 30},
		{"isbn: 0131103628", 30},
		{"Published by Oxford University Press", 30},
		{"All Rights Reserved.", 30},
		{"Unauthorised reproduction is prohibited", 30},
		{"ISBN 978-0-13-468599-1. All rights reserved. Unauthorized reproduction", 90},
		{"the press published a story", 0},
	}
	for _, c := range cases {
		if got := sum((Publisher{}).Evaluate(&Input{Text: c.text})); got != c.want {
			t.Fatalf("%q: expected %d, got %d", c.text, c.want, got)
		}
	}
}

func TestEducationalPatterns(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Chapter 3: Homework Assignment 2", 40},
		{"CHAPTER 12 : review", 20},
		{"Homework #4", 20},
		{"Test 1 answer key", 40},
		{"Instructor Solutions Manual", 20},
		{"chapter three", 0},
	}
	for _, c := range cases {
		if got := sum((Educational{}).Evaluate(&Input{Text: c.text})); got != c.want {
			t.Fatalf("%q: expected %d, got %d", c.text, c.want, got)
		}
	}
}

func TestMetadataMatchesCreatorAndProducer(t *testing.T) {
	hits := (Metadata{}).Evaluate(&Input{Metadata: map[string]string{
		"creator":  "Adobe InDesign CC 2019",
		"producer": "Studocu PDF export",
		"title":    "Chegg answers",
	}})
	if len(hits) != 2 || sum(hits) != 20 {
		t.Fatalf("expected two hits worth 20, got %v", hits)
	}
	if hits[0].Evidence != "Adobe InDesign" || hits[1].Evidence != "Studocu" {
		t.Fatalf("unexpected evidence %v", hits)
	}
}

func TestMetadataNil(t *testing.T) {
	if hits := (Metadata{}).Evaluate(&Input{}); hits != nil {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestEmptyInputProducesNoHits(t *testing.T) {
	cfg := config.DefaultScannerConfig()
	hits := evaluateAll(cfg, &Input{FileName: "notes.pdf", SizeBytes: 1024})
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestScenarioSumMatchesHandComputed(t *testing.T) {
	cfg := config.DefaultScannerConfig()
	in := &Input{
		FileName:  "answer_key_test.pdf",
		SizeBytes: 1 * bytesPerMB,
		Text:      "Chapter 3: Homework Assignment 2\nPearson Education",
	}
	hits := evaluateAll(cfg, in)
	// filename 15 + copyright 25 + chapter 20 + assignment number 20
	if got := sum(hits); got != 80 {
		t.Fatalf("expected 80, got %d (%v)", got, hits)
	}
}

func TestDefaultStages(t *testing.T) {
	var file []string
	for _, h := range Default(config.DefaultScannerConfig()) {
		if StageOf(h) == StageFile {
			file = append(file, h.Name())
		}
	}
	if len(file) != 2 || file[0] != "oversized" || file[1] != "filename" {
		t.Fatalf("expected oversized and filename to run before extraction, got %v", file)
	}
}
