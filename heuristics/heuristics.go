// Package heuristics implements the independent risk checks applied to an
// upload. Each check is pure and reports zero or more scored hits.
package heuristics

import (
	"uploadscan/config"
)

const (
	FlagOversized   = "oversized_file"
	FlagFilename    = "suspicious_filename"
	FlagCopyright   = "copyright_phrases"
	FlagPublisher   = "publisher_content"
	FlagEducational = "educational_material"
	FlagMetadata    = "suspicious_metadata"
)

// Category names the details bucket a hit's evidence is recorded in.
type Category string

const (
	CategoryNone       Category = ""
	CategoryCopyright  Category = "copyrightPhrases"
	CategoryMetadata   Category = "suspiciousMetadata"
	CategoryFileIssues Category = "fileIssues"
)

// Input is everything a heuristic may look at. Metadata is nil unless the
// upload is a PDF and its metadata could be read.
type Input struct {
	Path      string
	FileName  string
	SizeBytes int64
	Text      string
	Metadata  map[string]string
	Config    *config.ScannerConfig
}

type Hit struct {
	Flag     string
	Delta    int
	Category Category
	Evidence string
}

type Heuristic interface {
	Name() string
	Evaluate(in *Input) []Hit
}

// Stage says what a heuristic needs before it can run.
type Stage int

const (
	// StageContent checks read extracted text or metadata.
	StageContent Stage = iota
	// StageFile checks read only the name and size, so they run before
	// extraction.
	StageFile
)

// Staged is implemented by heuristics that can run before extraction.
type Staged interface {
	Stage() Stage
}

// StageOf reports h's stage; heuristics without one are content checks.
func StageOf(h Heuristic) Stage {
	if s, ok := h.(Staged); ok {
		return s.Stage()
	}
	return StageContent
}

// Default returns the standard checks in evaluation order.
func Default(cfg *config.ScannerConfig) []Heuristic {
	return []Heuristic{
		Oversized{},
		Filename{},
		NewCopyright(cfg.CopyrightPhrases),
		Publisher{},
		Educational{},
		Metadata{},
	}
}
