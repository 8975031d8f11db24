// Package playlist resolves station identifiers to playable stream URLs.
package playlist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when a station has no descriptor or the
// descriptor carries no usable stream location.
var ErrNotFound = errors.New("station not found")

// PLSResolver reads <Dir>/<id>.pls descriptors. Streams are listed on
// "FileN=<url>" lines; the first such line wins.
type PLSResolver struct {
	fs  afero.Fs
	dir string
}

// NewPLSResolver returns a resolver for descriptors in dir. A nil fs means
// the OS filesystem.
func NewPLSResolver(fs afero.Fs, dir string) *PLSResolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &PLSResolver{fs: fs, dir: dir}
}

// Resolve maps a station id to its stream URL.
func (r *PLSResolver) Resolve(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Only the base name is honored so ids can never escape the playlist dir.
	base := path.Base(filepath.ToSlash(id))
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	p := filepath.Join(r.dir, base+".pls")
	b, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}

	url, ok := streamURL(b)
	if !ok {
		return "", fmt.Errorf("%w: %s has no File entry", ErrNotFound, p)
	}
	return url, nil
}

// streamURL returns the value of the first line mentioning "file"
// (case-insensitive), i.e. everything after its first '='.
func streamURL(b []byte) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToLower(line), "file") {
			continue
		}
		_, value, found := strings.Cut(line, "=")
		if !found {
			return "", false
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
