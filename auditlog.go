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
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// TimestampLayout renders wall clock times in the audit log.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// AuditLog is the append-only acquisition log. Records of earlier runs are
// never rewritten; every run is bracketed by a start and an end marker.
type AuditLog struct {
	file afero.File
	path string
	now  func() time.Time
}

// OpenAuditLog opens or creates the log at path for appending.
func OpenAuditLog(fs afero.Fs, path string) (*AuditLog, error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644) // #nosec
	if err != nil {
		return nil, errors.Wrap(err, "could not open audit log")
	}
	return &AuditLog{file: f, path: path, now: time.Now}, nil
}

// Path returns the location of the log file.
func (l *AuditLog) Path() string {
	return l.path
}

func (l *AuditLog) timestamp() string {
	return l.now().Format(TimestampLayout)
}

func (l *AuditLog) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(l.file, format, args...)
	return errors.Wrap(err, "could not write audit log")
}

// Start writes the run header.
func (l *AuditLog) Start(source, destination, runID string) error {
	return l.printf("\n--- Acquisition started: %s ---\nSource: %s\nDestination: %s\nRun: %s\n",
		l.timestamp(), source, destination, runID)
}

// Copied records a successfully copied file.
func (l *AuditLog) Copied(name string) error {
	return l.printf("Copied %s at %s\n", name, l.timestamp())
}

// Skipped records a source entry that is not a regular file.
func (l *AuditLog) Skipped(name, reason string) error {
	return l.printf("Skipped %s (%s)\n", name, reason)
}

// Failed records a file that could not be copied.
func (l *AuditLog) Failed(name string, cause error) error {
	return l.printf("Failed %s at %s: %s\n", name, l.timestamp(), cause)
}

// Complete writes the end marker of a successful run.
func (l *AuditLog) Complete() error {
	return l.printf("--- Acquisition complete: %s ---\n", l.timestamp())
}

// Abort writes the end marker of a run that stopped on cause.
func (l *AuditLog) Abort(cause error) error {
	return l.printf("--- Acquisition failed: %s: %s ---\n", l.timestamp(), cause)
}

// Close syncs and closes the log file.
func (l *AuditLog) Close() error {
	if err := l.file.Sync(); err != nil {
		l.file.Close() // nolint:errcheck
		return err
	}
	return l.file.Close()
}
