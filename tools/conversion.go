package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Conversion owns the temporary working directory of one office-to-PDF run.
type Conversion struct {
	ID      string
	PDFPath string

	dir      string
	once     sync.Once
	closeErr error
}

// NewConversion creates a uniquely named working directory under parent.
func NewConversion(parent string) (*Conversion, error) {
	id := uuid.NewString()
	dir, err := os.MkdirTemp(parent, "uploadscan-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("create conversion dir: %w", err)
	}
	return &Conversion{ID: id, dir: dir}, nil
}

func (c *Conversion) Dir() string {
	return c.dir
}

// Close removes the working directory and everything in it. It is safe to
// call more than once.
func (c *Conversion) Close() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		c.closeErr = os.RemoveAll(c.dir)
	})
	return c.closeErr
}

func (c *Conversion) locateOutput(src string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".pdf"
	candidate := filepath.Join(c.dir, base)
	if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
		return candidate, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return "", fmt.Errorf("read conversion dir: %w", err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			return filepath.Join(c.dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("converter produced no PDF for %s", filepath.Base(src))
}
