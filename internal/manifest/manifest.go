// Package manifest loads the corpus manifest and maps volume identifiers
// to feature-file paths via the stubbytree partitioning scheme.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// idPattern matches the pairtree-style identifier namespace: a short
// lowercase library prefix, a dot, then the cleaned local identifier.
var idPattern = regexp.MustCompile(`^[a-z0-9]{2,5}\.[A-Za-z0-9:/$.,+=-]+$`)

// ValidID reports whether id belongs to the expected identifier namespace.
// The recovery scanner uses this to detect a corrupted store tail.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// CleanID encodes the local part of a volume id for use in filenames:
// ':' becomes '+', '/' becomes '=', '.' becomes ','.
func CleanID(local string) string {
	r := strings.NewReplacer(":", "+", "/", "=", ".", ",")
	return r.Replace(local)
}

// UncleanID reverses CleanID.
func UncleanID(local string) string {
	r := strings.NewReplacer("+", ":", "=", "/", ",", ".")
	return r.Replace(local)
}

// stubby returns every third character of the cleaned local id. Stubbytree
// directories keep any single directory from holding millions of entries
// while staying a pure function of the id.
func stubby(clean string) string {
	var b strings.Builder
	for i := 0; i < len(clean); i += 3 {
		b.WriteByte(clean[i])
	}
	return b.String()
}

// PathForID maps a volume id to its feature-file path relative to the
// corpus root. Pure function; the inverse is IDFromPath.
func PathForID(id string) (string, error) {
	lib, local, ok := strings.Cut(id, ".")
	if !ok || lib == "" || local == "" {
		return "", fmt.Errorf("malformed volume id %q", id)
	}
	clean := CleanID(local)
	name := lib + "." + clean + ".json.bz2"
	return filepath.Join(lib, stubby(clean), name), nil
}

// IDFromPath recovers the volume id from a manifest path.
func IDFromPath(path string) (string, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".json.bz2")
	lib, clean, ok := strings.Cut(base, ".")
	if !ok || lib == "" || clean == "" {
		return "", fmt.Errorf("path %q does not name a feature file", path)
	}
	return lib + "." + UncleanID(clean), nil
}

// Load reads a newline-delimited manifest of relative feature-file paths
// and returns the volume ids in file order. Blank lines are skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := IDFromPath(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %q: %w", line, err)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ids, nil
}
