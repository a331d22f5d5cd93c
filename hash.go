// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package forensicworkflow

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BlockSize is the read size used for hashing. Memory use does not depend
// on the file size.
const BlockSize = 64 * 1024

// manifestSeparator separates digest and file name, as in sha256sum output.
const manifestSeparator = "  "

// Names with a backslash or line break are escaped and the line is marked
// with a leading backslash, as sha256sum does.
var (
	nameEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	nameUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

// HashFile returns the hex encoded SHA-256 digest of the file at path.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	block := make([]byte, BlockSize)
	for {
		n, err := f.Read(block)
		if n > 0 {
			h.Write(block[:n]) // nolint:errcheck
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ManifestEntry is a single line of the hash manifest.
type ManifestEntry struct {
	Digest string
	Name   string
}

func (e ManifestEntry) String() string {
	if strings.ContainsAny(e.Name, "\\\n\r") {
		return `\` + e.Digest + manifestSeparator + nameEscaper.Replace(e.Name)
	}
	return e.Digest + manifestSeparator + e.Name
}

// Manifest maps working copies to their digests.
type Manifest struct {
	Path    string
	Entries []ManifestEntry
}

// Digest returns the recorded digest for name.
func (m *Manifest) Digest(name string) (string, bool) {
	for _, entry := range m.Entries {
		if entry.Name == name {
			return entry.Digest, true
		}
	}
	return "", false
}

// WriteTo writes the manifest lines to w.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, entry := range m.Entries {
		n, err := fmt.Fprintln(w, entry.String())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ParseManifest reads manifest lines as written by the Hasher.
func ParseManifest(r io.Reader) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		escaped := strings.HasPrefix(text, `\`)
		if escaped {
			text = text[1:]
		}
		digest, name, ok := strings.Cut(text, manifestSeparator)
		if !ok || name == "" {
			return nil, errors.Errorf("line %d: missing file name", line)
		}
		if len(digest) != sha256.Size*2 {
			return nil, errors.Errorf("line %d: invalid digest length %d", line, len(digest))
		}
		if _, err := hex.DecodeString(digest); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if escaped {
			name = nameUnescaper.Replace(name)
		}
		entries = append(entries, ManifestEntry{Digest: strings.ToLower(digest), Name: name})
	}
	return entries, scanner.Err()
}

// ReadManifest reads the manifest of a working directory.
func ReadManifest(fs afero.Fs, workingDir string) (*Manifest, error) {
	path := filepath.Join(workingDir, ManifestName)
	f, err := fs.Open(path)
	if err != nil {
		return nil, &FileReadError{Stage: StageVerify, Path: path, Err: err}
	}
	defer f.Close()

	entries, err := ParseManifest(f)
	if err != nil {
		return nil, &FileReadError{Stage: StageVerify, Path: path, Err: err}
	}
	return &Manifest{Path: path, Entries: entries}, nil
}

// Hasher writes the hash manifest of a working directory.
type Hasher struct {
	fs         afero.Fs
	workingDir string
	workers    int
	out        io.Writer
	logger     *zap.Logger
}

// NewHasher creates a Hasher for the working directory of cfg.
func NewHasher(fs afero.Fs, cfg Config, out io.Writer, logger *zap.Logger) *Hasher {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hasher{
		fs:         fs,
		workingDir: cfg.WorkingDir,
		workers:    cfg.Workers,
		out:        out,
		logger:     logger.With(zap.String("stage", StageHash)),
	}
}

// Hash digests every regular file of the working directory except the
// manifest and the metadata report, which are rewritten by later runs, and
// replaces the manifest. Any unreadable file aborts the
// run and leaves an earlier manifest in place.
func (h *Hasher) Hash(ctx context.Context) (*Manifest, error) {
	files, err := listRegular(h.fs, h.workingDir, ManifestName, ReportName)
	if err != nil {
		return nil, &DirectoryAccessError{Stage: StageHash, Path: h.workingDir, Err: err}
	}

	manifest := &Manifest{
		Path:    filepath.Join(h.workingDir, ManifestName),
		Entries: make([]ManifestEntry, len(files)),
	}

	err = forEach(ctx, h.workers, len(files), func(ctx context.Context, i int) error {
		path := filepath.Join(h.workingDir, files[i].Name())
		digest, err := HashFile(h.fs, path)
		if err != nil {
			h.logger.Error("hashing failed", zap.String("file", files[i].Name()), zap.Error(err))
			return &FileReadError{Stage: StageHash, Path: path, Err: err}
		}
		h.logger.Debug("hashed", zap.String("file", files[i].Name()), zap.String("sha256", digest))
		manifest.Entries[i] = ManifestEntry{Digest: digest, Name: files[i].Name()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = writeAtomic(h.fs, manifest.Path, func(w io.Writer) error {
		_, err := manifest.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not write manifest")
	}

	h.logger.Info("manifest written", zap.String("path", manifest.Path), zap.Int("files", len(files)))
	fmt.Fprintf(h.out, "SHA-256 hashes saved to %s\n", manifest.Path)
	return manifest, nil
}
