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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2020, 3, 14, 15, 9, 26, 0, time.UTC)

// failingFs fails to open the files named in fail.
type failingFs struct {
	afero.Fs
	fail map[string]bool
}

func (fs *failingFs) Open(name string) (afero.File, error) {
	if fs.fail[filepath.Base(name)] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.Open(name)
}

func writeFiles(t *testing.T, fs afero.Fs, dir string, files map[string]string) {
	require.NoError(t, fs.MkdirAll(dir, 0755))
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
		require.NoError(t, fs.Chtimes(path, fixedTime, fixedTime))
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

// fakeTool returns canned output per file name.
type fakeTool struct {
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeTool) Extract(_ context.Context, path string) (string, error) {
	name := filepath.Base(path)
	return f.outputs[name], f.errs[name]
}

// missingTool cannot be located.
type missingTool struct {
	fakeTool
}

func (m *missingTool) Locate() error {
	return &ToolNotFoundError{Tool: "missing", Err: errors.New("executable file not found in $PATH")}
}
