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

// Package spooled provides a write-once buffer that keeps small content in
// memory and spills larger content into a temporary file.
package spooled

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrReading is returned for writes after the first read.
var ErrReading = errors.New("spooled file is being read")

// TemporaryFile buffers up to maxSize bytes in memory. Once the content grows
// beyond that it is moved to a temporary file, which is removed on Close.
// All writes must happen before the first read.
type TemporaryFile struct {
	size    int64
	maxSize int64
	buffer  bytes.Buffer
	file    *os.File
	reading bool
}

// New creates a TemporaryFile and returns its Close function for deferring.
func New(maxSize int64) (*TemporaryFile, func() error) {
	t := &TemporaryFile{maxSize: maxSize}
	return t, t.Close
}

func (t *TemporaryFile) Write(p []byte) (n int, err error) {
	if t.reading {
		return 0, ErrReading
	}

	if t.file == nil && t.size+int64(len(p)) > t.maxSize {
		if err := t.Rollover(); err != nil {
			return 0, err
		}
	}

	if t.file != nil {
		n, err = t.file.Write(p)
	} else {
		n, err = t.buffer.Write(p)
	}
	t.size += int64(n)
	return n, err
}

// Read reads the content from the start.
func (t *TemporaryFile) Read(p []byte) (n int, err error) {
	if !t.reading {
		t.reading = true
		if t.file != nil {
			if _, err := t.file.Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
		}
	}

	if t.file != nil {
		return t.file.Read(p)
	}
	return t.buffer.Read(p)
}

// Rollover moves the buffered content into a temporary file.
func (t *TemporaryFile) Rollover() (err error) {
	if t.file != nil {
		return nil
	}
	t.file, err = os.CreateTemp("", "spooled-*")
	if err != nil {
		return fmt.Errorf("could not create tmp file: %w", err)
	}
	if _, err = t.buffer.WriteTo(t.file); err != nil {
		return fmt.Errorf("could not fill tmp file: %w", err)
	}
	return nil
}

// RolledOver reports whether the content lives in a temporary file.
func (t *TemporaryFile) RolledOver() bool {
	return t.file != nil
}

// Size returns the number of bytes written.
func (t *TemporaryFile) Size() int64 {
	return t.size
}

// Close releases the buffer and removes the temporary file.
func (t *TemporaryFile) Close() error {
	t.buffer.Reset()
	if t.file == nil {
		return nil
	}
	name := t.file.Name()
	err := t.file.Close()
	t.file = nil
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	return err
}
