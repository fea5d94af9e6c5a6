package config

import (
	"fmt"
	"strconv"
	"strings"

	"uploadscan/logger"
)

const (
	EnvCopyrightPhrases     = "COPYRIGHT_PHRASES"
	EnvMaxFileSizeMB        = "MAX_FILE_SIZE_MB"
	EnvAutoApproveThreshold = "AUTO_APPROVE_THRESHOLD"
	EnvEnableAutoApproval   = "ENABLE_AUTO_APPROVAL"

	DefaultMaxFileSizeMB        = 500
	DefaultAutoApproveThreshold = 10
)

// DefaultCopyrightPhrases lists publishers and resale marketplaces whose names
// in a document body suggest third-party material.
var DefaultCopyrightPhrases = []string{
	"Pearson Education",
	"McGraw-Hill",
	"Cengage Learning",
	"Houghton Mifflin Harcourt",
	"John Wiley & Sons",
	"Oxford University Press",
	"Cambridge University Press",
	"Elsevier",
	"Macmillan Learning",
	"Scholastic",
	"Teachers Pay Teachers",
	"Chegg",
	"Course Hero",
	"Quizlet",
	"Studocu",
}

// ScannerConfig holds the tunables of a scan. A value is built once and shared
// read-only between concurrent scans.
type ScannerConfig struct {
	CopyrightPhrases     []string `json:"copyright_phrases"`
	MaxFileSizeMB        int      `json:"max_file_size_mb"`
	AutoApproveThreshold int      `json:"auto_approve_threshold"`
	EnableAutoApproval   bool     `json:"enable_auto_approval"`
}

func DefaultScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		CopyrightPhrases:     append([]string(nil), DefaultCopyrightPhrases...),
		MaxFileSizeMB:        DefaultMaxFileSizeMB,
		AutoApproveThreshold: DefaultAutoApproveThreshold,
		EnableAutoApproval:   false,
	}
}

// LoadScannerConfig reads the scanner settings through getenv, keeping the
// default for anything unset or unparsable.
func LoadScannerConfig(getenv func(string) string) *ScannerConfig {
	cfg := DefaultScannerConfig()
	if getenv == nil {
		return cfg
	}

	if raw := strings.TrimSpace(getenv(EnvCopyrightPhrases)); raw != "" {
		phrases := make([]string, 0)
		for _, phrase := range parseCommaSeparated(raw) {
			if phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
		if len(phrases) > 0 {
			cfg.CopyrightPhrases = phrases
		}
	}
	if raw := strings.TrimSpace(getenv(EnvMaxFileSizeMB)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxFileSizeMB = v
		} else {
			logger.Warnf("Ignoring invalid %s=%q: %v", EnvMaxFileSizeMB, raw, err)
		}
	}
	if raw := strings.TrimSpace(getenv(EnvAutoApproveThreshold)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.AutoApproveThreshold = v
		} else {
			logger.Warnf("Ignoring invalid %s=%q: %v", EnvAutoApproveThreshold, raw, err)
		}
	}
	if raw := strings.TrimSpace(getenv(EnvEnableAutoApproval)); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.EnableAutoApproval = v
		} else {
			logger.Warnf("Ignoring invalid %s=%q: %v", EnvEnableAutoApproval, raw, err)
		}
	}
	return cfg
}

func (c *ScannerConfig) validate() error {
	if c == nil {
		return nil
	}
	if c.MaxFileSizeMB < 0 {
		return fmt.Errorf("max_file_size_mb must be zero or positive")
	}
	if c.AutoApproveThreshold < 0 {
		return fmt.Errorf("auto_approve_threshold must be zero or positive")
	}
	return nil
}
