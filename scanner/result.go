package scanner

import (
	"slices"

	"uploadscan/heuristics"
)

const (
	FlagScanFailed = "scan_failed"
	FlagHighRisk   = "high_risk"
	FlagMediumRisk = "medium_risk"
	FlagLowRisk    = "low_risk"

	// scanFailurePenalty is added when an upload could not be scanned, so
	// unreadable files land in review rather than passing silently.
	scanFailurePenalty = 50
)

type Details struct {
	CopyrightPhrases   []string `json:"copyrightPhrases,omitempty"`
	SuspiciousMetadata []string `json:"suspiciousMetadata,omitempty"`
	FileIssues         []string `json:"fileIssues,omitempty"`
	Error              string   `json:"error,omitempty"`
}

type Result struct {
	RiskScore int      `json:"riskScore"`
	Flags     []string `json:"flags"`
	Details   Details  `json:"details"`
}

func (r Result) Score() int { return r.RiskScore }

func (r Result) Failed() bool { return r.HasFlag(FlagScanFailed) }

func (r Result) HasFlag(flag string) bool {
	return slices.Contains(r.Flags, flag)
}

// Bucket returns the risk bucket flag carried by the result, "failed" for a
// failed scan and "none" when the score stayed below every threshold.
func (r Result) Bucket() string {
	if r.Failed() {
		return "failed"
	}
	for _, b := range []string{FlagHighRisk, FlagMediumRisk, FlagLowRisk} {
		if r.HasFlag(b) {
			return b
		}
	}
	return "none"
}

// Classify maps a final score to its bucket flag, or "" below 25.
func Classify(score int) string {
	switch {
	case score >= 75:
		return FlagHighRisk
	case score >= 50:
		return FlagMediumRisk
	case score >= 25:
		return FlagLowRisk
	default:
		return ""
	}
}

type accumulator struct {
	score   int
	flags   []string
	details Details
}

func newAccumulator() *accumulator {
	return &accumulator{flags: []string{}}
}

func (a *accumulator) add(hits []heuristics.Hit) {
	for _, h := range hits {
		a.score += h.Delta
		a.flag(h.Flag)
		if h.Evidence == "" {
			continue
		}
		switch h.Category {
		case heuristics.CategoryCopyright:
			a.details.CopyrightPhrases = appendUnique(a.details.CopyrightPhrases, h.Evidence)
		case heuristics.CategoryMetadata:
			a.details.SuspiciousMetadata = appendUnique(a.details.SuspiciousMetadata, h.Evidence)
		case heuristics.CategoryFileIssues:
			a.details.FileIssues = appendUnique(a.details.FileIssues, h.Evidence)
		}
	}
}

func (a *accumulator) flag(f string) {
	if !slices.Contains(a.flags, f) {
		a.flags = append(a.flags, f)
	}
}

func (a *accumulator) bucket() {
	if b := Classify(a.score); b != "" {
		a.flag(b)
	}
}

func (a *accumulator) fail(err error) {
	a.score += scanFailurePenalty
	a.flag(FlagScanFailed)
	a.details.Error = err.Error()
}

func (a *accumulator) result() Result {
	return Result{
		RiskScore: a.score,
		Flags:     slices.Clone(a.flags),
		Details:   a.details,
	}
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
