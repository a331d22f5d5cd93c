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
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ReportTimeLayout renders filesystem times in the metadata report.
const ReportTimeLayout = "Mon Jan _2 15:04:05 2006"

// sectionSeparator ends every report section.
var sectionSeparator = strings.Repeat("-", 50)

// FileAttributes are the filesystem level attributes of a working copy.
type FileAttributes struct {
	Size     int64
	Created  time.Time
	Modified time.Time
	Accessed time.Time
}

// Section is the metadata report entry of a single file.
type Section struct {
	Name       string
	Path       string
	Output     string
	Attributes FileAttributes
	// Err is set if the metadata tool failed on this file.
	Err error
}

// WriteTo renders the section as it appears in the report.
func (s *Section) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "--- Metadata for %s ---\n", s.Name)
	b.WriteString(s.Output)
	if s.Output != "" && !strings.HasSuffix(s.Output, "\n") {
		b.WriteByte('\n')
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "Tool Error: %s\n", s.Err)
	}
	fmt.Fprintf(&b, "File Size: %d bytes\n", s.Attributes.Size)
	fmt.Fprintf(&b, "Creation Time: %s\n", s.Attributes.Created.Format(ReportTimeLayout))
	fmt.Fprintf(&b, "Modification Time: %s\n", s.Attributes.Modified.Format(ReportTimeLayout))
	fmt.Fprintf(&b, "\n%s\n\n", sectionSeparator)
	return b.WriteTo(w)
}

// Report is the consolidated metadata report of a working directory.
type Report struct {
	Path     string
	Sections []*Section
}

// Failed returns the sections the metadata tool failed on.
func (r *Report) Failed() []*Section {
	var failed []*Section
	for _, section := range r.Sections {
		if section.Err != nil {
			failed = append(failed, section)
		}
	}
	return failed
}

// Extractor writes the metadata report of a working directory.
type Extractor struct {
	fs         afero.Fs
	workingDir string
	tool       MetadataTool
	workers    int
	out        io.Writer
	outMutex   sync.Mutex
	logger     *zap.Logger
}

// NewExtractor creates an Extractor for the working directory of cfg.
func NewExtractor(fs afero.Fs, cfg Config, tool MetadataTool, out io.Writer, logger *zap.Logger) *Extractor {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		fs:         fs,
		workingDir: cfg.WorkingDir,
		tool:       tool,
		workers:    cfg.Workers,
		out:        out,
		logger:     logger.With(zap.String("stage", StageExtract)),
	}
}

// Extract runs the metadata tool on every regular file of the working
// directory except the report itself. Every section is mirrored to the
// console as soon as it is complete. A missing tool aborts before any file
// is processed and before anything is written.
func (e *Extractor) Extract(ctx context.Context) (*Report, error) {
	if locator, ok := e.tool.(Locator); ok {
		if err := locator.Locate(); err != nil {
			e.logger.Error("metadata tool not found", zap.Error(err))
			return nil, err
		}
	}

	files, err := listRegular(e.fs, e.workingDir, ReportName)
	if err != nil {
		return nil, &DirectoryAccessError{Stage: StageExtract, Path: e.workingDir, Err: err}
	}

	report := &Report{
		Path:     filepath.Join(e.workingDir, ReportName),
		Sections: make([]*Section, len(files)),
	}

	err = forEach(ctx, e.workers, len(files), func(ctx context.Context, i int) error {
		section, err := e.extractFile(ctx, files[i].Name())
		if err != nil {
			return err
		}
		report.Sections[i] = section
		e.mirror(section)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = writeAtomic(e.fs, report.Path, func(w io.Writer) error {
		for _, section := range report.Sections {
			if _, err := section.WriteTo(w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not write metadata report")
	}

	e.logger.Info("report written",
		zap.String("path", report.Path),
		zap.Int("files", len(report.Sections)),
		zap.Int("tool_failures", len(report.Failed())))
	fmt.Fprintf(e.out, "All metadata saved to %s\n", report.Path)
	return report, nil
}

func (e *Extractor) extractFile(ctx context.Context, name string) (*Section, error) {
	path := filepath.Join(e.workingDir, name)
	section := &Section{Name: name, Path: path}

	output, err := e.tool.Extract(ctx, path)
	section.Output = output
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var notFound *ToolNotFoundError
		if errors.As(err, &notFound) {
			return nil, err
		}
		var execErr *ToolExecutionError
		if !errors.As(err, &execErr) {
			err = &ToolExecutionError{Tool: "metadata tool", Path: path, ExitCode: -1, Err: err}
		}
		section.Err = err
		e.logger.Warn("metadata tool failed", zap.String("file", name), zap.Error(err))
		e.outMutex.Lock()
		fmt.Fprintf(e.out, "Metadata extraction failed for %s: %s\n", name, err)
		e.outMutex.Unlock()
	}

	info, err := e.fs.Stat(path)
	if err != nil {
		e.logger.Error("stat failed", zap.String("file", name), zap.Error(err))
		return nil, &FileReadError{Stage: StageExtract, Path: path, Err: err}
	}
	ft := statTimes(e.fs, path, info)
	section.Attributes = FileAttributes{
		Size:     info.Size(),
		Created:  ft.Creation,
		Modified: info.ModTime(),
		Accessed: ft.Access,
	}
	return section, nil
}

func (e *Extractor) mirror(section *Section) {
	e.outMutex.Lock()
	defer e.outMutex.Unlock()
	section.WriteTo(e.out) // nolint:errcheck
}

// ParseToolOutput parses "Key : Value" lines as printed by exiftool. Lines
// without a colon are ignored, later keys win. A single line may be as long
// as the whole output, e.g. inline XMP.
func ParseToolOutput(output string) map[string]string {
	fields := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	maxLine := bufio.MaxScanTokenSize
	if len(output) >= maxLine {
		maxLine = len(output) + 1
	}
	scanner.Buffer(nil, maxLine)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		zap.L().Warn("tool output truncated", zap.Int("fields", len(fields)), zap.Error(err))
	}
	return fields
}
