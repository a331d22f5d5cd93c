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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Acquirer copies the regular files of a source directory into the working
// directory. An existing working copy of the same name is overwritten, which
// makes repeated acquisitions refresh the copies.
type Acquirer struct {
	fs              afero.Fs
	sourceDir       string
	workingDir      string
	continueOnError bool
	out             io.Writer
	logger          *zap.Logger
}

// AcquisitionResult summarizes an acquisition run.
type AcquisitionResult struct {
	RunID   string
	LogPath string
	Copied  []string
	Skipped []string
	Failed  []*FileReadError
}

// NewAcquirer creates an Acquirer for the directories of cfg.
func NewAcquirer(fs afero.Fs, cfg Config, out io.Writer, logger *zap.Logger) *Acquirer {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		fs:              fs,
		sourceDir:       cfg.SourceDir,
		workingDir:      cfg.WorkingDir,
		continueOnError: cfg.ContinueOnError,
		out:             out,
		logger:          logger.With(zap.String("stage", StageAcquire)),
	}
}

// Acquire runs the acquisition. The source directory is listed before
// anything is written, so an inaccessible source leaves no trace.
func (a *Acquirer) Acquire(ctx context.Context) (result *AcquisitionResult, err error) { // nolint:funlen
	if filepath.Clean(a.sourceDir) == filepath.Clean(a.workingDir) {
		return nil, errors.New("working directory must differ from the source directory")
	}

	entries, err := afero.ReadDir(a.fs, a.sourceDir)
	if err != nil {
		return nil, &DirectoryAccessError{Stage: StageAcquire, Path: a.sourceDir, Err: err}
	}

	if err := a.fs.MkdirAll(a.workingDir, 0750); err != nil {
		return nil, &DirectoryAccessError{Stage: StageAcquire, Path: a.workingDir, Err: err}
	}

	result = &AcquisitionResult{
		RunID:   uuid.New().String(),
		LogPath: filepath.Join(a.workingDir, AuditLogName),
	}

	audit, err := OpenAuditLog(a.fs, result.LogPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := audit.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "could not close audit log")
		}
	}()

	a.logger.Info("acquisition started",
		zap.String("run", result.RunID),
		zap.String("source", a.sourceDir),
		zap.String("destination", a.workingDir))
	if err := audit.Start(a.sourceDir, a.workingDir, result.RunID); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			audit.Abort(err) // nolint:errcheck
			return result, err
		}

		name := entry.Name()
		if !entry.Mode().IsRegular() || reservedNames[name] {
			kind := entryKind(entry)
			if entry.Mode().IsRegular() {
				kind = "reserved name"
			}
			a.logger.Info("skipped", zap.String("file", name), zap.String("kind", kind))
			fmt.Fprintf(a.out, "Skipped %s (%s)\n", name, kind)
			result.Skipped = append(result.Skipped, name)
			if err := audit.Skipped(name, kind); err != nil {
				return result, err
			}
			continue
		}

		src := filepath.Join(a.sourceDir, name)
		dst := filepath.Join(a.workingDir, name)
		if cerr := copyFile(a.fs, src, dst, entry); cerr != nil {
			ferr := &FileReadError{Stage: StageAcquire, Path: src, Err: cerr}
			a.logger.Error("copy failed", zap.String("file", name), zap.Error(cerr))
			if !a.continueOnError {
				audit.Abort(ferr) // nolint:errcheck
				return result, ferr
			}
			fmt.Fprintf(a.out, "Failed to copy %s: %s\n", name, cerr)
			result.Failed = append(result.Failed, ferr)
			if err := audit.Failed(name, cerr); err != nil {
				return result, err
			}
			continue
		}

		a.logger.Debug("copied", zap.String("file", name), zap.Int64("size", entry.Size()))
		result.Copied = append(result.Copied, name)
		if err := audit.Copied(name); err != nil {
			return result, err
		}
	}

	if err := audit.Complete(); err != nil {
		return result, err
	}
	a.logger.Info("acquisition complete",
		zap.Int("copied", len(result.Copied)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
	fmt.Fprintf(a.out, "Files acquired and logged to %s\n", result.LogPath)
	return result, nil
}

// reservedNames are the files the stages write into the working directory.
// Evidence files of the same name would replace them and are skipped.
var reservedNames = map[string]bool{
	AuditLogName: true,
	ManifestName: true,
	ReportName:   true,
}

// copyFile copies src to dst and transfers permissions, access and
// modification time.
func copyFile(fs afero.Fs, src, dst string, info os.FileInfo) error {
	// read the times before the copy touches the access time
	ft := statTimes(fs, src, info)

	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// a read-only copy of an earlier run must not block the refresh
	if existing, err := fs.Stat(dst); err == nil && existing.Mode().IsRegular() {
		if err := fs.Chmod(dst, 0600); err != nil {
			return err
		}
	}

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() // nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return fs.Chtimes(dst, ft.Access, info.ModTime())
}
