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
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/forensicanalysis/forensicworkflow/forensicstore"
)

// ElementTimeLayout renders times of evidence elements (RFC 3339, UTC).
const ElementTimeLayout = "2006-01-02T15:04:05.000Z"

// Recorder stores the working copies of a run as file elements in a
// forensicstore.
type Recorder struct {
	fs         afero.Fs
	workingDir string
	storePath  string
	pack       bool
	out        io.Writer
	logger     *zap.Logger
}

// NewRecorder creates a Recorder for the working directory and store of cfg.
func NewRecorder(fs afero.Fs, cfg Config, out io.Writer, logger *zap.Logger) *Recorder {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		fs:         fs,
		workingDir: cfg.WorkingDir,
		storePath:  cfg.StorePath,
		pack:       cfg.Pack,
		out:        out,
		logger:     logger.With(zap.String("stage", StageRecord)),
	}
}

// Record inserts one element per manifest entry. Attributes and tool
// output are taken from the report section of the same file if there is
// one. All elements of a run are inserted in a single transaction.
func (r *Recorder) Record(ctx context.Context, runID string, manifest *Manifest, report *Report) (ids []string, err error) {
	if runID == "" {
		runID = uuid.New().String()
	}

	store, err := forensicstore.OpenOrCreate(r.storePath)
	if err != nil {
		return nil, errors.Wrap(err, "could not open forensicstore")
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "could not close forensicstore")
		}
	}()

	sections := map[string]*Section{}
	if report != nil {
		for _, section := range report.Sections {
			sections[section.Name] = section
		}
	}

	var elements []interface{}
	for _, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, err := r.element(runID, entry, sections[entry.Name])
		if err != nil {
			return nil, err
		}
		if r.pack {
			if file.ExportPath, err = r.packFile(store, runID, entry.Name); err != nil {
				return nil, err
			}
		}
		elements = append(elements, file)
	}

	ids, err = store.InsertStructBatch(elements)
	if err != nil {
		return nil, errors.Wrap(err, "could not insert elements")
	}

	r.logger.Info("evidence recorded", zap.String("store", store.URL()),
		zap.String("run", runID), zap.Int("elements", len(ids)), zap.Bool("packed", r.pack))
	fmt.Fprintf(r.out, "Evidence recorded in %s\n", store.URL())
	return ids, nil
}

func (r *Recorder) element(runID string, entry ManifestEntry, section *Section) (*forensicstore.File, error) {
	file := forensicstore.NewFile()
	file.Name = entry.Name
	file.Artifact = runID
	file.Hashes = map[string]interface{}{"SHA-256": entry.Digest}

	var attributes FileAttributes
	if section != nil {
		attributes = section.Attributes
		if fields := ParseToolOutput(section.Output); len(fields) > 0 {
			file.Attributes = map[string]interface{}{}
			for key, value := range fields {
				file.Attributes[key] = value
			}
		}
		if section.Err != nil {
			file.AddError(section.Err.Error())
		}
	} else {
		filePath := filepath.Join(r.workingDir, entry.Name)
		info, err := r.fs.Stat(filePath)
		if err != nil {
			return nil, &FileReadError{Stage: StageRecord, Path: filePath, Err: err}
		}
		ft := statTimes(r.fs, filePath, info)
		attributes = FileAttributes{Size: info.Size(), Created: ft.Creation, Modified: info.ModTime(), Accessed: ft.Access}
	}

	file.Size = float64(attributes.Size)
	file.Ctime = formatElementTime(attributes.Created)
	file.Mtime = formatElementTime(attributes.Modified)
	file.Atime = formatElementTime(attributes.Accessed)
	return file, nil
}

func (r *Recorder) packFile(store *forensicstore.ForensicStore, runID, name string) (string, error) {
	filePath := filepath.Join(r.workingDir, name)
	src, err := r.fs.Open(filePath)
	if err != nil {
		return "", &FileReadError{Stage: StageRecord, Path: filePath, Err: err}
	}
	defer src.Close()

	storePath, dst, err := store.StoreFile(path.Join(runID, name))
	if err != nil {
		return "", errors.Wrapf(err, "could not store %s", name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() // nolint:errcheck
		return "", &FileReadError{Stage: StageRecord, Path: filePath, Err: err}
	}
	if err := dst.Close(); err != nil {
		return "", errors.Wrapf(err, "could not store %s", name)
	}
	r.logger.Debug("packed", zap.String("file", name), zap.String("path", storePath))
	return storePath, nil
}

func formatElementTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ElementTimeLayout)
}
