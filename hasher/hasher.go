// Package hasher computes content digests recorded alongside each scan.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"

	"uploadscan/logger"
)

const (
	bufferSmallSize      = 32 * 1024
	bufferLargeSize      = 256 * 1024
	largeBufferThreshold = 1024 * 1024
)

var bufferSmallPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, bufferSmallSize)
		return &buf
	},
}

var bufferLargePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, bufferLargeSize)
		return &buf
	},
}

var constructors = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"blake3": func() hash.Hash { return blake3.New(32, nil) },
	"xxh64":  func() hash.Hash { return xxhash.New() },
}

// Supported lists the algorithm names ComputeHashes understands.
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeHashes reads path once and feeds every requested digest. Unknown
// algorithms are skipped with a warning.
func ComputeHashes(path string, algorithms []string) (map[string]string, error) {
	type entry struct {
		name string
		h    hash.Hash
	}
	entries := make([]entry, 0, len(algorithms))
	seen := make(map[string]bool, len(algorithms))
	for _, algo := range algorithms {
		if seen[algo] {
			continue
		}
		seen[algo] = true
		newHash, ok := constructors[algo]
		if !ok {
			logger.Warnf("Unsupported hash algorithm: %s", algo)
			continue
		}
		entries = append(entries, entry{name: algo, h: newHash()})
	}
	hashes := make(map[string]string, len(entries))
	if len(entries) == 0 {
		return hashes, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return hashes, fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	pool := &bufferSmallPool
	if info, statErr := file.Stat(); statErr == nil && info.Size() >= largeBufferThreshold {
		pool = &bufferLargePool
	}
	bufPtr := pool.Get().(*[]byte)
	defer pool.Put(bufPtr)

	writers := make([]io.Writer, len(entries))
	for i := range entries {
		writers[i] = entries[i].h
	}
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), file, *bufPtr); err != nil {
		return hashes, fmt.Errorf("hash %s: %w", path, err)
	}

	for _, e := range entries {
		hashes[e.name] = hex.EncodeToString(e.h.Sum(nil))
	}
	return hashes, nil
}
