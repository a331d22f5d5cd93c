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

package sqlitefs

import (
	"compress/flate"
	"io"
	"os"
	"path"
	"sort"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicworkflow/sqlitefs/spooled"
)

// ErrNotImplemented is returned for random access operations.
var ErrNotImplemented = errors.New("not implemented")

// spoolSize is the amount of compressed content kept in memory before a
// written file is spooled to disk.
const spoolSize = 8 << 20

type item struct {
	fs   *FS
	path string

	// reader item
	info     os.FileInfo
	blob     *sqlite.Blob
	reader   io.ReadCloser
	children []os.FileInfo
	offset   int

	// writer item
	id     int64
	spool  *spooled.TemporaryFile
	writer *flate.Writer
	size   int64
}

func newWriteItem(fs *FS, id int64, path string) (*item, error) {
	spool, _ := spooled.New(spoolSize)
	writer, err := flate.NewWriter(spool, flate.DefaultCompression)
	if err != nil {
		spool.Close() // nolint:errcheck
		return nil, err
	}
	return &item{fs: fs, id: id, path: path, spool: spool, writer: writer}, nil
}

func newReadItem(fs *FS, id int64, path string, info os.FileInfo, children []os.FileInfo) (*item, error) {
	i := &item{fs: fs, path: path, info: info, children: children}
	if !info.IsDir() {
		blob, err := fs.cursor.OpenBlob("", "sqlar", "data", id, false)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open %s", path)
		}
		i.blob = blob
		i.reader = flate.NewReader(blob)
	}
	return i, nil
}

func (i *item) Name() string {
	return path.Base(i.path)
}

func (i *item) Read(p []byte) (n int, err error) {
	if i.reader == nil {
		return 0, &os.PathError{Op: "read", Path: i.path, Err: errors.New("not readable")}
	}
	if i.info != nil && i.info.Size() == 0 {
		return 0, io.EOF
	}
	return i.reader.Read(p)
}

func (i *item) ReadAt(p []byte, off int64) (n int, err error) {
	return 0, ErrNotImplemented
}

func (i *item) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrNotImplemented
}

func (i *item) Readdir(count int) ([]os.FileInfo, error) {
	if i.info == nil || !i.info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: i.path, Err: errors.New("not a directory")}
	}
	rest := i.children[i.offset:]
	if count <= 0 {
		i.offset = len(i.children)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	i.offset += count
	return rest[:count], nil
}

func (i *item) Readdirnames(n int) ([]string, error) {
	infos, err := i.Readdir(n)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, err
}

func (i *item) Stat() (os.FileInfo, error) {
	if i.info != nil {
		return i.info, nil
	}
	return i.fs.Stat(i.path)
}

func (i *item) Write(p []byte) (n int, err error) {
	if i.writer == nil {
		return 0, &os.PathError{Op: "write", Path: i.path, Err: errors.New("not writable")}
	}
	n, err = i.writer.Write(p)
	i.size += int64(n)
	return n, err
}

func (i *item) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, ErrNotImplemented
}

func (i *item) WriteString(s string) (ret int, err error) {
	return i.Write([]byte(s))
}

func (i *item) Close() error {
	if i.writer != nil {
		return i.flush()
	}
	if i.reader != nil {
		if err := i.reader.Close(); err != nil {
			i.blob.Close() // nolint:errcheck
			return err
		}
		return i.blob.Close()
	}
	return nil
}

// flush stores the spooled content in the sqlar row.
func (i *item) flush() (err error) {
	defer func() {
		if cerr := i.spool.Close(); err == nil {
			err = cerr
		}
		i.writer = nil
	}()

	if err := i.writer.Close(); err != nil {
		return err
	}

	err = i.fs.exec(`UPDATE sqlar SET sz = $sz, data = $data WHERE rowid = $id`, func(stmt *sqlite.Stmt) {
		stmt.SetInt64("$id", i.id)
		stmt.SetInt64("$sz", i.size)
		stmt.SetZeroBlob("$data", i.spool.Size())
	})
	if err != nil {
		return err
	}

	blob, err := i.fs.cursor.OpenBlob("", "sqlar", "data", i.id, true)
	if err != nil {
		return err
	}
	if _, err := io.Copy(blob, i.spool); err != nil {
		blob.Close() // nolint:errcheck
		return err
	}
	return blob.Close()
}

func (i *item) Truncate(size int64) error {
	return ErrNotImplemented
}

func (i *item) Sync() error {
	if i.writer != nil {
		return i.writer.Flush()
	}
	return nil
}
