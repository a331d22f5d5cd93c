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

// Package sqlitefs implements an afero.Fs on top of the sqlar table of a
// SQLite database. File content is stored deflate compressed.
package sqlitefs

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// FS is a filesystem stored in a SQLite database.
type FS struct {
	cursor *sqlite.Conn
	owned  bool
}

var _ afero.Fs = (*FS)(nil)

const table = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- compressed content
);`

const infoColumns = `name, mode, mtime, sz, CASE WHEN data IS NULL THEN 1 ELSE 0 END dataNull`

// New opens or creates the database at url.
func New(url string) (*FS, error) {
	cursor, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	fs, err := NewCursor(cursor)
	if err != nil {
		cursor.Close() // nolint:errcheck
		return nil, err
	}
	fs.owned = true
	return fs, nil
}

// NewCursor creates the filesystem on an existing connection. Close does
// not close the connection.
func NewCursor(cursor *sqlite.Conn) (*FS, error) {
	fs := &FS{cursor: cursor}
	if err := fs.exec(table, nil); err != nil {
		return nil, errors.Wrap(err, "could not create sqlar table")
	}
	err := fs.exec(`INSERT OR IGNORE INTO sqlar (name, mode, mtime, sz, data) VALUES ('/', $mode, $mtime, 0, NULL)`,
		func(stmt *sqlite.Stmt) {
			stmt.SetInt64("$mode", int64(os.ModeDir|0755))
			stmt.SetInt64("$mtime", time.Now().Unix())
		})
	return fs, err
}

func (fs *FS) exec(query string, bind func(stmt *sqlite.Stmt)) error {
	stmt, err := fs.cursor.Prepare(query)
	if err != nil {
		return err
	}
	if bind != nil {
		bind(stmt)
	}
	if _, err := stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return err
	}
	return stmt.Reset()
}

// Name returns the name of this filesystem.
func (fs *FS) Name() string {
	return "SQLiteFS"
}

// Chmod changes the permission bits of name.
func (fs *FS) Chmod(name string, mode os.FileMode) error {
	info, err := fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		mode |= os.ModeDir
	}
	return fs.exec("UPDATE sqlar SET mode = $mode WHERE name = $name", func(stmt *sqlite.Stmt) {
		stmt.SetText("$name", normalizeFilename(name))
		stmt.SetInt64("$mode", int64(mode))
	})
}

// Chtimes sets the modification time of name. sqlar has no access time.
func (fs *FS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	if _, err := fs.Stat(name); err != nil {
		return err
	}
	return fs.exec("UPDATE sqlar SET mtime = $mtime WHERE name = $name", func(stmt *sqlite.Stmt) {
		stmt.SetText("$name", normalizeFilename(name))
		stmt.SetInt64("$mtime", mtime.Unix())
	})
}

// Create creates or truncates name.
func (fs *FS) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// Mkdir creates a single directory.
func (fs *FS) Mkdir(name string, perm os.FileMode) error {
	name = normalizeFilename(name)
	if _, err := fs.Stat(name); err == nil {
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrExist}
	}
	return fs.exec(`INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, 0, NULL)`,
		func(stmt *sqlite.Stmt) {
			stmt.SetText("$name", name)
			stmt.SetInt64("$mode", int64(os.ModeDir|perm.Perm()))
			stmt.SetInt64("$mtime", time.Now().Unix())
		})
}

// MkdirAll creates a directory and all missing parents.
func (fs *FS) MkdirAll(p string, perm os.FileMode) error {
	all := "/"
	for _, part := range strings.Split(strings.Trim(normalizeFilename(p), "/"), "/") {
		if part == "" {
			continue
		}
		all = path.Join(all, part)
		info, err := fs.Stat(all)
		if err == nil {
			if !info.IsDir() {
				return &os.PathError{Op: "mkdir", Path: all, Err: errors.New("not a directory")}
			}
			continue
		}
		if err := fs.Mkdir(all, perm); err != nil {
			return err
		}
	}
	return nil
}

// Open opens name for reading.
func (fs *FS) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens name for reading, or for writing if flag contains
// os.O_CREATE, os.O_WRONLY or os.O_RDWR. Written content replaces the
// previous content when the file is closed.
func (fs *FS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	name = normalizeFilename(name)

	if flag&(os.O_CREATE|os.O_WRONLY|os.O_RDWR) != 0 {
		id, err := fs.createFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return newWriteItem(fs, id, name)
	}

	stmt, err := fs.cursor.Prepare(`SELECT rowid, ` + infoColumns + ` FROM sqlar WHERE name = $name`)
	if err != nil {
		return nil, err
	}
	stmt.SetText("$name", name)
	hasRow, err := stmt.Step()
	if err != nil {
		stmt.Reset() // nolint:errcheck
		return nil, err
	}
	if !hasRow {
		stmt.Reset() // nolint:errcheck
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	id := stmt.GetInt64("rowid")
	info := rowInfo(stmt, path.Base(name))
	if err := stmt.Reset(); err != nil {
		return nil, err
	}

	var children []os.FileInfo
	if info.IsDir() {
		children, err = fs.selectChildren(name)
		if err != nil {
			return nil, err
		}
	}
	return newReadItem(fs, id, name, info, children)
}

func (fs *FS) createFile(name string, flag int, perm os.FileMode) (int64, error) {
	info, err := fs.Stat(name)
	switch {
	case err == nil && info.IsDir():
		return 0, &os.PathError{Op: "open", Path: name, Err: errors.New("is a directory")}
	case err == nil && flag&os.O_EXCL != 0:
		return 0, &os.PathError{Op: "open", Path: name, Err: os.ErrExist}
	case err != nil && flag&os.O_CREATE == 0:
		return 0, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}

	if parent, err := fs.Stat(path.Dir(name)); err != nil || !parent.IsDir() {
		return 0, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}

	err = fs.exec(`INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, 0, zeroblob(0))
		ON CONFLICT(name) DO UPDATE SET mtime = excluded.mtime`,
		func(stmt *sqlite.Stmt) {
			stmt.SetText("$name", name)
			stmt.SetInt64("$mode", int64(perm.Perm()))
			stmt.SetInt64("$mtime", time.Now().Unix())
		})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create %s", name)
	}

	stmt, err := fs.cursor.Prepare(`SELECT rowid FROM sqlar WHERE name = $name`)
	if err != nil {
		return 0, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$name", name)
	if hasRow, err := stmt.Step(); err != nil {
		return 0, err
	} else if !hasRow {
		return 0, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return stmt.GetInt64("rowid"), nil
}

func (fs *FS) selectChildren(name string) ([]os.FileInfo, error) {
	prefix := strings.TrimSuffix(name, "/") + "/"
	stmt, err := fs.cursor.Prepare(`SELECT ` + infoColumns + ` FROM sqlar
		WHERE substr(name, 1, length($prefix)) = $prefix AND name != $name ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$prefix", prefix)
	stmt.SetText("$name", name)

	var children []os.FileInfo
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		childName := stmt.GetText("name")
		if strings.Contains(childName[len(prefix):], "/") {
			continue
		}
		children = append(children, rowInfo(stmt, path.Base(childName)))
	}
	return children, nil
}

// Remove removes a file or an empty directory.
func (fs *FS) Remove(name string) error {
	name = normalizeFilename(name)
	info, err := fs.Stat(name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		children, err := fs.selectChildren(name)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return &os.PathError{Op: "remove", Path: name, Err: errors.New("directory not empty")}
		}
	}
	return fs.exec(`DELETE FROM sqlar WHERE name = $name`, func(stmt *sqlite.Stmt) {
		stmt.SetText("$name", name)
	})
}

// RemoveAll removes name and everything below it.
func (fs *FS) RemoveAll(name string) error {
	name = normalizeFilename(name)
	return fs.exec(`DELETE FROM sqlar WHERE name = $name OR substr(name, 1, length($prefix)) = $prefix`,
		func(stmt *sqlite.Stmt) {
			stmt.SetText("$name", name)
			stmt.SetText("$prefix", strings.TrimSuffix(name, "/")+"/")
		})
}

// Rename moves a file or directory including its children.
func (fs *FS) Rename(oldname, newname string) error {
	oldname = normalizeFilename(oldname)
	newname = normalizeFilename(newname)
	if _, err := fs.Stat(oldname); err != nil {
		return err
	}
	if err := fs.exec(`DELETE FROM sqlar WHERE name = $name`, func(stmt *sqlite.Stmt) {
		stmt.SetText("$name", newname)
	}); err != nil {
		return err
	}
	return fs.exec(`UPDATE sqlar SET name = $new || substr(name, length($old) + 1)
		WHERE name = $old OR substr(name, 1, length($old) + 1) = $old || '/'`,
		func(stmt *sqlite.Stmt) {
			stmt.SetText("$old", oldname)
			stmt.SetText("$new", newname)
		})
}

// Stat returns the FileInfo of name.
func (fs *FS) Stat(name string) (os.FileInfo, error) {
	name = normalizeFilename(name)

	stmt, err := fs.cursor.Prepare(`SELECT ` + infoColumns + ` FROM sqlar WHERE name = $name`)
	if err != nil {
		return nil, err
	}
	defer stmt.Reset() // nolint:errcheck
	stmt.SetText("$name", name)

	hasRow, err := stmt.Step()
	if err != nil {
		return nil, err
	} else if !hasRow {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return rowInfo(stmt, path.Base(name)), nil
}

// Close closes the database if it was opened by New.
func (fs *FS) Close() error {
	if fs.owned {
		return fs.cursor.Close()
	}
	return nil
}

// Info describes a sqlar entry.
type Info struct {
	name  string
	sz    int64
	mtime time.Time
	mode  os.FileMode
	dir   bool
}

func rowInfo(stmt *sqlite.Stmt, name string) *Info {
	mode := os.FileMode(stmt.GetInt64("mode"))
	dir := stmt.GetInt64("dataNull") == 1
	if dir {
		mode |= os.ModeDir
	}
	return &Info{
		name:  name,
		sz:    stmt.GetInt64("sz"),
		mtime: time.Unix(stmt.GetInt64("mtime"), 0),
		mode:  mode,
		dir:   dir,
	}
}

func (i *Info) Name() string       { return i.name }
func (i *Info) Size() int64        { return i.sz }
func (i *Info) Mode() os.FileMode  { return i.mode }
func (i *Info) ModTime() time.Time { return i.mtime }
func (i *Info) IsDir() bool        { return i.dir }
func (i *Info) Sys() interface{}   { return nil }

func normalizeFilename(name string) string {
	name = filepath.ToSlash(name)
	name = path.Clean("/" + strings.Trim(name, "/"))
	return name
}
