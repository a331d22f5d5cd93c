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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestHashFile(t *testing.T) {
	large := strings.Repeat("0123456789abcdef", BlockSize/4+3)
	largeSum := sha256.Sum256([]byte(large))

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"hello", "hello", helloDigest},
		{"empty", "", emptyDigest},
		{"larger than block", large, hex.EncodeToString(largeSum[:])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/f", []byte(tt.content), 0644))

			got, err := HashFile(fs, "/f")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := HashFile(afero.NewMemMapFs(), "/missing")
	assert.Error(t, err)
}

func TestHasher_Hash(t *testing.T) {
	for _, workers := range []int{1, 4} {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/work", map[string]string{
			"a.txt":               "hello",
			"b.txt":               "",
			ManifestName:          "stale",
			ReportName:            "--- Metadata for a.txt ---\n",
			tempPrefix + "x-1234": "partial",
		})
		require.NoError(t, fs.Mkdir("/work/dir", 0755))

		var out bytes.Buffer
		manifest, err := NewHasher(fs, Config{WorkingDir: "/work", Workers: workers}, &out, nil).Hash(context.Background())
		require.NoError(t, err)

		want := []ManifestEntry{{helloDigest, "a.txt"}, {emptyDigest, "b.txt"}}
		assert.Equal(t, want, manifest.Entries)
		assert.Equal(t, "/work/"+ManifestName, manifest.Path)
		assert.Equal(t, helloDigest+"  a.txt\n"+emptyDigest+"  b.txt\n", readFile(t, fs, manifest.Path))
		assert.Equal(t, "SHA-256 hashes saved to /work/hashes.txt\n", out.String())

		digest, ok := manifest.Digest("a.txt")
		assert.True(t, ok)
		assert.Equal(t, helloDigest, digest)
		_, ok = manifest.Digest(ManifestName)
		assert.False(t, ok)
	}
}

func TestHasher_HashUnreadable(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeFiles(t, mem, "/work", map[string]string{"a.txt": "hello", "b.txt": "x", ManifestName: "previous\n"})
	fs := &failingFs{Fs: mem, fail: map[string]bool{"b.txt": true}}

	_, err := NewHasher(fs, Config{WorkingDir: "/work", Workers: 1}, nil, nil).Hash(context.Background())

	var readErr *FileReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, StageHash, readErr.Stage)
	assert.Equal(t, "/work/b.txt", readErr.Path)
	assert.Equal(t, "previous\n", readFile(t, mem, "/work/"+ManifestName), "manifest must stay untouched")
}

func TestHasher_HashMissingDirectory(t *testing.T) {
	_, err := NewHasher(afero.NewMemMapFs(), Config{WorkingDir: "/missing"}, nil, nil).Hash(context.Background())
	var dirErr *DirectoryAccessError
	assert.True(t, errors.As(err, &dirErr))
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []ManifestEntry
		wantErr bool
	}{
		{"valid", helloDigest + "  a.txt\n", []ManifestEntry{{helloDigest, "a.txt"}}, false},
		{"blank lines", "\n" + helloDigest + "  a.txt\n\n", []ManifestEntry{{helloDigest, "a.txt"}}, false},
		{"crlf", helloDigest + "  a.txt\r\n", []ManifestEntry{{helloDigest, "a.txt"}}, false},
		{"spaces in name", helloDigest + "  my file.txt\n", []ManifestEntry{{helloDigest, "my file.txt"}}, false},
		{"upper case", strings.ToUpper(helloDigest) + "  a.txt\n", []ManifestEntry{{helloDigest, "a.txt"}}, false},
		{"empty", "", nil, false},
		{"missing name", helloDigest + "\n", nil, true},
		{"short digest", "abcd  a.txt\n", nil, true},
		{"no hex", strings.Repeat("z", 64) + "  a.txt\n", nil, true},
		{"escaped name", `\` + helloDigest + `  a\nb\\c.txt` + "\n", []ManifestEntry{{helloDigest, "a\nb\\c.txt"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := ReadManifest(fs, "/work")
	var readErr *FileReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, StageVerify, readErr.Stage)

	writeFiles(t, fs, "/work", map[string]string{ManifestName: helloDigest + "  a.txt\n"})
	manifest, err := ReadManifest(fs, "/work")
	require.NoError(t, err)
	assert.Equal(t, []ManifestEntry{{helloDigest, "a.txt"}}, manifest.Entries)
}

func TestManifest_WriteToEscapesNames(t *testing.T) {
	manifest := &Manifest{Entries: []ManifestEntry{
		{helloDigest, "a.txt"},
		{emptyDigest, "line\nbreak.txt"},
		{helloDigest, `back\slash\n.txt`},
	}}

	var b bytes.Buffer
	_, err := manifest.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, helloDigest+"  a.txt\n"+
		`\`+emptyDigest+`  line\nbreak.txt`+"\n"+
		`\`+helloDigest+`  back\\slash\\n.txt`+"\n", b.String())

	entries, err := ParseManifest(&b)
	require.NoError(t, err)
	assert.Equal(t, manifest.Entries, entries)
}

func TestHasher_HashNewlineName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/work", map[string]string{"a\nb.txt": "hello"})

	_, err := NewHasher(fs, Config{WorkingDir: "/work", Workers: 1}, nil, nil).Hash(context.Background())
	require.NoError(t, err)

	verification, err := NewVerifier(fs, Config{WorkingDir: "/work"}, nil, nil).Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, verification.OK())
	assert.Equal(t, []string{"a\nb.txt"}, verification.Matched)
}
