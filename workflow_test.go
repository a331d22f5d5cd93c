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
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/case/src", map[string]string{"a.txt": "hello", "b.txt": "world"})
	require.NoError(t, fs.Mkdir("/case/src/sub", 0755))

	cfg := Config{
		SourceDir:  "/case/src",
		WorkingDir: "/case/work",
		ToolPath:   DefaultTool,
		Workers:    2,
		StorePath:  filepath.Join(t.TempDir(), "case.forensicstore"),
		Pack:       true,
	}
	tool := &fakeTool{outputs: map[string]string{"a.txt": "File Type : TXT\n"}}

	var out bytes.Buffer
	result, err := Run(context.Background(), fs, cfg, tool, &out, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, result.Acquisition.Copied)

	var names []string
	for _, entry := range result.Manifest.Entries {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"a.txt", AuditLogName, "b.txt"}, names)

	names = nil
	for _, section := range result.Report.Sections {
		names = append(names, section.Name)
	}
	assert.Equal(t, []string{"a.txt", AuditLogName, "b.txt", ManifestName}, names)
	assert.Len(t, result.ElementIDs, 3)

	console := out.String()
	acquired := strings.Index(console, "Files acquired and logged to /case/work/acq_log.txt")
	hashed := strings.Index(console, "SHA-256 hashes saved to /case/work/hashes.txt")
	extracted := strings.Index(console, "All metadata saved to /case/work/metadata.txt")
	recorded := strings.Index(console, "Evidence recorded in ")
	assert.True(t, acquired >= 0 && acquired < hashed && hashed < extracted && extracted < recorded, console)

	verification, err := NewVerifier(fs, cfg, nil, nil).Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, verification.OK())
	assert.Empty(t, verification.Unlisted)
}

func TestRun_Twice(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/src", map[string]string{"a.txt": "hello"})
	cfg := Config{SourceDir: "/src", WorkingDir: "/work", ToolPath: DefaultTool, Workers: 1}
	tool := &fakeTool{outputs: map[string]string{"a.txt": "File Type : TXT\n"}}

	for run := 1; run <= 2; run++ {
		result, err := Run(context.Background(), fs, cfg, tool, nil, nil)
		require.NoError(t, err, "run %d", run)

		var names []string
		for _, entry := range result.Manifest.Entries {
			names = append(names, entry.Name)
		}
		assert.Equal(t, []string{"a.txt", AuditLogName}, names, "run %d", run)

		verification, err := NewVerifier(fs, cfg, nil, nil).Verify(context.Background())
		require.NoError(t, err)
		assert.True(t, verification.OK(), "run %d: %+v", run, verification.Mismatched)
		assert.Empty(t, verification.Unlisted)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Config{SourceDir: "/missing", WorkingDir: "/work", ToolPath: DefaultTool, Workers: 1}

	_, err := Run(context.Background(), fs, cfg, &fakeTool{}, nil, nil)
	var dirErr *DirectoryAccessError
	assert.True(t, errors.As(err, &dirErr))

	exists, err := afero.Exists(fs, "/work")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_ToolNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/src", map[string]string{"a.txt": "hello"})
	cfg := Config{SourceDir: "/src", WorkingDir: "/work", ToolPath: DefaultTool, Workers: 1}

	result, err := Run(context.Background(), fs, cfg, &missingTool{}, nil, nil)
	var notFound *ToolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.NotNil(t, result.Manifest)
	assert.Nil(t, result.Report)
}
