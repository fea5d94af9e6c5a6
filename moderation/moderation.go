// Package moderation turns a scan assessment into a queue decision. The
// scanner only reports; approval is always decided here, by the caller.
package moderation

import (
	"fmt"

	"uploadscan/config"
)

const (
	StatusAutoApproved  = "auto_approved"
	StatusPendingReview = "pending_review"
)

// Assessment is the part of a scan result a decision depends on.
type Assessment interface {
	Score() int
	Failed() bool
}

type Decision struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (d Decision) Approved() bool {
	return d.Status == StatusAutoApproved
}

// Decide approves only when auto-approval is enabled, the scan completed and
// the score is strictly below the configured threshold.
func Decide(a Assessment, cfg *config.ScannerConfig) Decision {
	switch {
	case cfg == nil || !cfg.EnableAutoApproval:
		return Decision{Status: StatusPendingReview, Reason: "auto-approval disabled"}
	case a.Failed():
		return Decision{Status: StatusPendingReview, Reason: "scan failed"}
	case a.Score() >= cfg.AutoApproveThreshold:
		return Decision{
			Status: StatusPendingReview,
			Reason: fmt.Sprintf("risk score %d at or above threshold %d", a.Score(), cfg.AutoApproveThreshold),
		}
	default:
		return Decision{
			Status: StatusAutoApproved,
			Reason: fmt.Sprintf("risk score %d below threshold %d", a.Score(), cfg.AutoApproveThreshold),
		}
	}
}
