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
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// MetadataTool extracts embedded metadata of a single file as text.
type MetadataTool interface {
	// Extract returns the tool output for path. The output is returned even
	// if err is not nil.
	Extract(ctx context.Context, path string) (output string, err error)
}

// Locator is implemented by tools that can check their availability before
// any file is processed.
type Locator interface {
	Locate() error
}

// ExecTool runs an external program as "<Path> <file>" and captures its
// standard output.
type ExecTool struct {
	Path    string
	Timeout time.Duration
}

// NewExecTool creates an ExecTool for the program at path.
func NewExecTool(path string, timeout time.Duration) *ExecTool {
	return &ExecTool{Path: path, Timeout: timeout}
}

// Locate resolves the program in PATH or checks the given path is executable.
func (t *ExecTool) Locate() error {
	if _, err := exec.LookPath(t.Path); err != nil {
		return &ToolNotFoundError{Tool: t.Path, Err: err}
	}
	return nil
}

// Extract runs the program on path. Standard output is returned regardless
// of the exit status; a failed start, a non-zero exit or a timeout is
// returned as ToolExecutionError.
func (t *ExecTool) Extract(ctx context.Context, path string) (string, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, path) // #nosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	execErr := &ToolExecutionError{Tool: t.Path, Path: path, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		execErr.Err = errors.Wrapf(ctx.Err(), "timeout after %s", t.Timeout)
	}
	return stdout.String(), execErr
}
