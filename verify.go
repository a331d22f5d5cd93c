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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Mismatch is a working copy whose content changed since hashing.
type Mismatch struct {
	Name     string
	Expected string
	Actual   string
}

// Verification is the result of checking a working directory against its
// manifest.
type Verification struct {
	Matched    []string
	Mismatched []Mismatch
	// Missing files are listed in the manifest but absent.
	Missing []string
	// Unlisted files are present but not in the manifest.
	Unlisted []string
}

// OK reports whether every listed file is present and unchanged.
func (v *Verification) OK() bool {
	return len(v.Mismatched) == 0 && len(v.Missing) == 0
}

// Verifier recomputes the digests of a working directory and compares them
// to the manifest written by the Hasher.
type Verifier struct {
	fs         afero.Fs
	workingDir string
	out        io.Writer
	logger     *zap.Logger
}

// NewVerifier creates a Verifier for the working directory of cfg.
func NewVerifier(fs afero.Fs, cfg Config, out io.Writer, logger *zap.Logger) *Verifier {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		fs:         fs,
		workingDir: cfg.WorkingDir,
		out:        out,
		logger:     logger.With(zap.String("stage", StageVerify)),
	}
}

// Verify checks every manifest entry. Only a missing or malformed manifest
// is an error; deviations are reported in the Verification.
func (v *Verifier) Verify(ctx context.Context) (*Verification, error) {
	manifest, err := ReadManifest(v.fs, v.workingDir)
	if err != nil {
		return nil, err
	}

	result := &Verification{}
	listed := map[string]bool{}
	for _, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listed[entry.Name] = true

		path := filepath.Join(v.workingDir, entry.Name)
		digest, err := HashFile(v.fs, path)
		switch {
		case os.IsNotExist(err):
			v.logger.Warn("missing", zap.String("file", entry.Name))
			fmt.Fprintf(v.out, "%s: MISSING\n", entry.Name)
			result.Missing = append(result.Missing, entry.Name)
		case err != nil:
			return nil, &FileReadError{Stage: StageVerify, Path: path, Err: err}
		case digest != entry.Digest:
			v.logger.Warn("digest mismatch", zap.String("file", entry.Name),
				zap.String("expected", entry.Digest), zap.String("actual", digest))
			fmt.Fprintf(v.out, "%s: FAILED\n", entry.Name)
			result.Mismatched = append(result.Mismatched, Mismatch{Name: entry.Name, Expected: entry.Digest, Actual: digest})
		default:
			fmt.Fprintf(v.out, "%s: OK\n", entry.Name)
			result.Matched = append(result.Matched, entry.Name)
		}
	}

	files, err := listRegular(v.fs, v.workingDir, ManifestName, ReportName)
	if err != nil {
		return nil, &DirectoryAccessError{Stage: StageVerify, Path: v.workingDir, Err: err}
	}
	for _, file := range files {
		if !listed[file.Name()] {
			result.Unlisted = append(result.Unlisted, file.Name())
		}
	}

	v.logger.Info("verification complete",
		zap.Int("matched", len(result.Matched)),
		zap.Int("mismatched", len(result.Mismatched)),
		zap.Int("missing", len(result.Missing)),
		zap.Int("unlisted", len(result.Unlisted)))
	return result, nil
}
