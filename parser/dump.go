// ABOUTME: Side-channel storage for raw responses that no parser tier accepted
// ABOUTME: Each dump is a ULID-named text file so dumps sort by time
package parser

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// Dumper stores a raw response for later inspection and returns where.
type Dumper interface {
	Dump(raw string) (string, error)
}

// DirDumper writes dumps into Dir, creating it on first use.
type DirDumper struct {
	Dir string
}

func NewDirDumper(dir string) *DirDumper {
	return &DirDumper{Dir: dir}
}

func (d *DirDumper) Dump(raw string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create debug dir: %w", err)
	}
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	path := filepath.Join(d.Dir, "response-"+id.String()+".txt")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		return "", fmt.Errorf("failed to write debug dump: %w", err)
	}
	return path, nil
}
