// Package snapshot stores and checks golden SQL files. A compilation
// produces two snapshots per test case, the plain and the optimized
// rendering, compared with whitespace normalization so editor trailing
// space never breaks a build. Running tests with -update rewrites the
// files from current output instead of asserting.
package snapshot

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Update rewrites golden snapshots from current output when set.
var Update = flag.Bool("update", false, "rewrite golden SQL snapshots instead of asserting")

// optimizedSuffix marks snapshots of the optimized rendering.
const optimizedSuffix = "_optimized"

// FileName returns the snapshot file name for a test case and plan:
// "<test>__<plan>.sql", with "_optimized" appended to the plan part
// for the optimized rendering.
func FileName(testName, planID string, optimized bool) string {
	name := testName + "__" + planID
	if optimized {
		name += optimizedSuffix
	}
	return name + ".sql"
}

// Store reads and writes snapshot files under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the absolute location of a snapshot file.
func (s *Store) Path(fileName string) string {
	return filepath.Join(s.dir, fileName)
}

// Read returns the stored snapshot. A missing file is an error naming
// the expected path, so a failing first run says what to create.
func (s *Store) Read(fileName string) (string, error) {
	data, err := os.ReadFile(s.Path(fileName))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("golden snapshot %s does not exist; run tests with -update to create it", s.Path(fileName))
	}
	if err != nil {
		return "", fmt.Errorf("reading golden snapshot %s: %w", s.Path(fileName), err)
	}
	return string(data), nil
}

// Write stores a snapshot, creating the directory as needed.
func (s *Store) Write(fileName, content string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory %s: %w", s.dir, err)
	}
	if err := os.WriteFile(s.Path(fileName), []byte(Normalize(content)), 0o644); err != nil {
		return fmt.Errorf("writing golden snapshot %s: %w", s.Path(fileName), err)
	}
	return nil
}

// Check asserts that got matches the stored snapshot, or rewrites the
// snapshot when tests run with -update.
func (s *Store) Check(t *testing.T, fileName, got string) {
	t.Helper()
	s.check(t, fileName, got, *Update)
}

func (s *Store) check(t *testing.T, fileName, got string, update bool) {
	t.Helper()
	if update {
		require.NoError(t, s.Write(fileName, got))
		return
	}
	want, err := s.Read(fileName)
	require.NoError(t, err)
	assert.Equal(t, Normalize(want), Normalize(got), "snapshot %s", s.Path(fileName))
}

// Normalize strips trailing whitespace per line and surrounding blank
// lines, and guarantees a single trailing newline. Comparisons and
// stored files both go through it.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	if start == end {
		return ""
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}
