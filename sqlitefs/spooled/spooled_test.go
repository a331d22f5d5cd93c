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

package spooled

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporaryFile_Read(t *testing.T) {
	tests := []struct {
		name         string
		maxSize      int64
		content      []byte
		wantRollover bool
	}{
		{"in memory", 1000, bytes.Repeat([]byte("abcd"), 100), false},
		{"on disk", 10, bytes.Repeat([]byte("abcd"), 100), true},
		{"empty", 10, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, teardown := New(tt.maxSize)
			defer teardown() // nolint:errcheck

			// two writes to cross the threshold in the middle
			half := len(tt.content) / 2
			_, err := f.Write(tt.content[:half])
			require.NoError(t, err)
			_, err = f.Write(tt.content[half:])
			require.NoError(t, err)

			assert.Equal(t, tt.wantRollover, f.RolledOver())
			assert.Equal(t, int64(len(tt.content)), f.Size())

			got, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, len(tt.content), len(got))
			assert.True(t, bytes.Equal(tt.content, got))
		})
	}
}

func TestTemporaryFile_WriteAfterRead(t *testing.T) {
	f, teardown := New(10)
	defer teardown() // nolint:errcheck

	_, err := f.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 1))
	require.NoError(t, err)

	_, err = f.Write([]byte("d"))
	assert.ErrorIs(t, err, ErrReading)
}

func TestTemporaryFile_Close(t *testing.T) {
	f, _ := New(1)
	_, err := f.Write([]byte("abcd"))
	require.NoError(t, err)
	require.True(t, f.RolledOver())
	name := f.file.Name()

	require.NoError(t, f.Close())
	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, f.Close())
}
