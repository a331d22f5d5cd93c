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

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicworkflow"
)

func execute(t *testing.T, args ...string) (string, error) {
	for _, name := range []string{forensicworkflow.EnvSource, forensicworkflow.EnvWorking,
		forensicworkflow.EnvTool, forensicworkflow.EnvStore, forensicworkflow.EnvWorkers} {
		t.Setenv(name, "")
	}

	var out bytes.Buffer
	root := Root()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) (src, work string) {
	dir := t.TempDir()
	src = filepath.Join(dir, "src")
	work = filepath.Join(dir, "work")
	require.NoError(t, os.Mkdir(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0644))
	return src, work
}

func TestAcquireHashVerify(t *testing.T) {
	src, work := setup(t)

	out, err := execute(t, "acquire", "--source", src, "--working", work)
	require.NoError(t, err)
	assert.Contains(t, out, "Files acquired and logged to "+filepath.Join(work, forensicworkflow.AuditLogName))

	out, err = execute(t, "hash", "-w", work)
	require.NoError(t, err)
	assert.Contains(t, out, "SHA-256 hashes saved to "+filepath.Join(work, forensicworkflow.ManifestName))

	out, err = execute(t, "verify", "-w", work)
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt: OK\n")

	require.NoError(t, os.WriteFile(filepath.Join(work, "a.txt"), []byte("tampered"), 0644))
	out, err = execute(t, "verify", "-w", work)
	assert.Error(t, err)
	assert.Contains(t, out, "a.txt: FAILED\n")
}

func TestAcquire_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "acquire", "-s", filepath.Join(dir, "missing"), "-w", filepath.Join(dir, "work"))

	var dirErr *forensicworkflow.DirectoryAccessError
	assert.True(t, errors.As(err, &dirErr))
	_, statErr := os.Stat(filepath.Join(dir, "work"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract_ToolNotFound(t *testing.T) {
	_, work := setup(t)
	require.NoError(t, os.Mkdir(work, 0755))

	_, err := execute(t, "extract", "-w", work, "--tool", filepath.Join(work, "no-such-tool"))
	var notFound *forensicworkflow.ToolNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	src, work := setup(t)
	dir := t.TempDir()
	tool := filepath.Join(dir, "tool.sh")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho \"Title : $(basename \"$1\")\"\n"), 0755)) // #nosec
	store := filepath.Join(dir, "case.forensicstore")

	out, err := execute(t, "run", "-s", src, "-w", work, "--tool", tool, "--store", store, "--pack", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "--- Metadata for a.txt ---\nTitle : a.txt\n")
	assert.Contains(t, out, "All metadata saved to ")
	assert.Contains(t, out, "Evidence recorded in "+store)

	out, err = execute(t, "store", "select", "file", store, "--field", "name")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\n"+forensicworkflow.AuditLogName+"\n", out)

	out, err = execute(t, "store", "select", "file", store, "--where", "name=a.txt", "--field", "attributes.title")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\n", out)

	out, err = execute(t, "store", "validate", store)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = execute(t, "store", "ls", store)
	require.NoError(t, err)
	assert.Contains(t, out, "/a.txt\t5\n")

	dest := filepath.Join(dir, "unpacked")
	_, err = execute(t, "store", "unpack", store, dest, "--basename")
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.txt"), []byte("kept"), 0644))
	_, err = execute(t, "store", "unpack", store, dest, "--basename")
	assert.ErrorIs(t, err, os.ErrExist)
	b, err = os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "kept", string(b))
}

func TestStore_InsertGet(t *testing.T) {
	store := filepath.Join(t.TempDir(), "notes.forensicstore")

	out, err := execute(t, "store", "insert", `{"type": "note", "text": "seized at 10:00"}`, store)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(id, "note--"), id)

	out, err = execute(t, "store", "get", id, store)
	require.NoError(t, err)
	assert.Contains(t, out, `"seized at 10:00"`)

	out, err = execute(t, "store", "all", store, "--field", "text")
	require.NoError(t, err)
	assert.Equal(t, "seized at 10:00\n", out)

	_, err = execute(t, "store", "get", "note--missing", store)
	assert.Error(t, err)

	_, err = execute(t, "store", "insert", `{"type": "file", "name": ""}`, store)
	assert.Error(t, err)
}
