package heuristics

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

const bytesPerMB = 1024 * 1024

type pattern struct {
	label string
	re    *regexp.Regexp
}

// Oversized flags files larger than the configured limit.
type Oversized struct{}

func (Oversized) Name() string { return "oversized" }

func (Oversized) Stage() Stage { return StageFile }

func (Oversized) Evaluate(in *Input) []Hit {
	if in.Config == nil {
		return nil
	}
	sizeMB := float64(in.SizeBytes) / bytesPerMB
	if sizeMB <= float64(in.Config.MaxFileSizeMB) {
		return nil
	}
	return []Hit{{
		Flag:     FlagOversized,
		Delta:    20,
		Category: CategoryFileIssues,
		Evidence: fmt.Sprintf("File size (%.2fMB) exceeds maximum allowed (%dMB)", sizeMB, in.Config.MaxFileSizeMB),
	}}
}

var filenamePatterns = []pattern{
	{"test, sample, demo or trial wording", regexp.MustCompile(`(?i)(test|sample|demo|trial)`)},
	{"executable or script extension", regexp.MustCompile(`(?i)\.(exe|bat|sh|cmd)$`)},
	{"copyright marker", regexp.MustCompile(`(?i)(copyright|©|all rights reserved)`)},
}

// Filename scores each suspicious pattern the upload's name matches.
type Filename struct{}

func (Filename) Name() string { return "filename" }

func (Filename) Stage() Stage { return StageFile }

func (Filename) Evaluate(in *Input) []Hit {
	name := in.FileName
	if name == "" && in.Path != "" {
		name = filepath.Base(in.Path)
	}
	if name == "" {
		return nil
	}
	var hits []Hit
	for _, p := range filenamePatterns {
		if p.re.MatchString(name) {
			hits = append(hits, Hit{
				Flag:     FlagFilename,
				Delta:    15,
				Category: CategoryFileIssues,
				Evidence: fmt.Sprintf("Filename contains %s", p.label),
			})
		}
	}
	return hits
}

// Copyright matches configured phrases as case-insensitive substrings using a
// single Aho-Corasick pass over the text.
type Copyright struct {
	phrases []string
	matcher *ahocorasick.Matcher
}

func NewCopyright(phrases []string) *Copyright {
	c := &Copyright{}
	seen := make(map[string]bool, len(phrases))
	var dict []string
	for _, phrase := range phrases {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.phrases = append(c.phrases, strings.TrimSpace(phrase))
		dict = append(dict, key)
	}
	if len(dict) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(dict)
	}
	return c
}

func (c *Copyright) Name() string { return "copyright" }

func (c *Copyright) Evaluate(in *Input) []Hit {
	if c.matcher == nil || in.Text == "" {
		return nil
	}
	idx := c.matcher.MatchThreadSafe([]byte(strings.ToLower(in.Text)))
	if len(idx) == 0 {
		return nil
	}
	sort.Ints(idx)
	hits := make([]Hit, 0, len(idx))
	for n, i := range idx {
		if n > 0 && idx[n-1] == i {
			continue
		}
		hits = append(hits, Hit{
			Flag:     FlagCopyright,
			Delta:    25,
			Category: CategoryCopyright,
			Evidence: c.phrases[i],
		})
	}
	return hits
}

var publisherPatterns = []pattern{
	{"isbn", regexp.MustCompile(`(?i)isbn[\s:-]*(?:97[89][\s-]?)?\d{1,5}[\s-]?\d{1,7}[\s-]?\d{1,7}[\s-]?[\dx]`)},
	{"published by press", regexp.MustCompile(`(?i)published\s+by\s+[^\n]{0,80}?\bpress\b`)},
	{"all rights reserved", regexp.MustCompile(`(?i)all\s+rights\s+reserved`)},
	{"unauthorized reproduction", regexp.MustCompile(`(?i)unauthori[sz]ed\s+reproduction`)},
}

// Publisher looks for front-matter wording typical of commercial books.
type Publisher struct{}

func (Publisher) Name() string { return "publisher" }

func (Publisher) Evaluate(in *Input) []Hit {
	return matchText(in.Text, publisherPatterns, FlagPublisher, 30)
}

var educationalPatterns = []pattern{
	{"chapter heading", regexp.MustCompile(`(?i)chapter\s+\d+\s*:`)},
	{"numbered homework", regexp.MustCompile(`(?i)\b(?:homework|assignment|test)\s*#?\s*\d+`)},
	{"answer key", regexp.MustCompile(`(?i)answer\s+key|solutions?\s+manual`)},
}

// Educational looks for course material such as answer keys and numbered
// assignments.
type Educational struct{}

func (Educational) Name() string { return "educational" }

func (Educational) Evaluate(in *Input) []Hit {
	return matchText(in.Text, educationalPatterns, FlagEducational, 20)
}

func matchText(text string, patterns []pattern, flag string, delta int) []Hit {
	if text == "" {
		return nil
	}
	var hits []Hit
	for _, p := range patterns {
		if p.re.MatchString(text) {
			hits = append(hits, Hit{Flag: flag, Delta: delta, Evidence: p.label})
		}
	}
	return hits
}

// SuspiciousProducers are authoring tools and marketplaces whose names in a
// PDF's creator or producer suggest republished commercial material.
var SuspiciousProducers = []string{
	"Adobe InDesign",
	"QuarkXPress",
	"Scribd",
	"Course Hero",
	"Chegg",
	"Studocu",
	"Teachers Pay Teachers",
	"Pearson",
	"McGraw-Hill",
	"Cengage",
}

// Metadata inspects the creator and producer fields of PDF metadata.
type Metadata struct{}

func (Metadata) Name() string { return "metadata" }

func (Metadata) Evaluate(in *Input) []Hit {
	if len(in.Metadata) == 0 {
		return nil
	}
	fields := strings.ToLower(in.Metadata["creator"] + "\n" + in.Metadata["producer"])
	if strings.TrimSpace(fields) == "" {
		return nil
	}
	var hits []Hit
	for _, name := range SuspiciousProducers {
		if strings.Contains(fields, strings.ToLower(name)) {
			hits = append(hits, Hit{
				Flag:     FlagMetadata,
				Delta:    10,
				Category: CategoryMetadata,
				Evidence: name,
			})
		}
	}
	return hits
}
