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
	"strings"
)

// Stage names used in errors and log records.
const (
	StageConfig  = "config"
	StageAcquire = "acquire"
	StageHash    = "hash"
	StageExtract = "extract"
	StageVerify  = "verify"
	StageRecord  = "record"
)

// DirectoryAccessError is returned if a directory cannot be listed or created.
// It is always fatal.
type DirectoryAccessError struct {
	Stage string
	Path  string
	Err   error
}

func (e *DirectoryAccessError) Error() string {
	return fmt.Sprintf("%s: cannot access directory %s: %s", e.Stage, e.Path, e.Err)
}

func (e *DirectoryAccessError) Unwrap() error { return e.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (e *DirectoryAccessError) Cause() error { return e.Err }

// FileReadError is returned if a file vanished or cannot be read or copied.
type FileReadError struct {
	Stage string
	Path  string
	Err   error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("%s: cannot read %s: %s", e.Stage, e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (e *FileReadError) Cause() error { return e.Err }

// ToolNotFoundError is returned before extraction if the metadata tool
// cannot be located or is not executable.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s: metadata tool %s not found: %s", StageExtract, e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error { return e.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (e *ToolNotFoundError) Cause() error { return e.Err }

// ToolExecutionError describes a single failed invocation of the metadata
// tool. Extraction continues with the next file.
type ToolExecutionError struct {
	Tool     string
	Path     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s failed on %s: %s", StageExtract, e.Tool, e.Path, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += " (" + firstLine(stderr) + ")"
	}
	return msg
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (e *ToolExecutionError) Cause() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
