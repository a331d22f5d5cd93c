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
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// tempPrefix marks in-progress files of writeAtomic. They are never listed.
const tempPrefix = ".fw-tmp-"

// listRegular returns the regular files of dir sorted by name, leaving out
// the given names and temporary files.
func listRegular(fs afero.Fs, dir string, exclude ...string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var files []os.FileInfo
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || skip[entry.Name()] || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		files = append(files, entry)
	}
	return files, nil
}

// entryKind names the type of a non-regular directory entry.
func entryKind(info os.FileInfo) string {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return "directory"
	case mode&os.ModeSymlink != 0:
		return "symlink"
	case mode&os.ModeDevice != 0:
		return "device"
	case mode&os.ModeNamedPipe != 0:
		return "named pipe"
	case mode&os.ModeSocket != 0:
		return "socket"
	default:
		return "not a regular file"
	}
}

// writeAtomic writes a file via a temporary file in the same directory that
// is renamed into place once fill succeeded. On error the previous content
// of path stays untouched.
func writeAtomic(fs afero.Fs, path string, fill func(w io.Writer) error) (err error) {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), tempPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "could not create temporary file")
	}
	defer func() {
		if err != nil {
			tmp.Close()          // nolint:errcheck
			fs.Remove(tmp.Name()) // nolint:errcheck
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "could not sync temporary file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close temporary file")
	}
	if err = fs.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(err, "could not set permissions")
	}
	return errors.Wrap(fs.Rename(tmp.Name(), path), "could not replace "+filepath.Base(path))
}

// FileTimes are the timestamps the filesystem reports for a file.
type FileTimes struct {
	Access time.Time
	Modify time.Time
	// Creation is the birth time if available, the inode change time on
	// platforms without birth time and the modification time otherwise.
	Creation time.Time
}

func statTimes(fs afero.Fs, path string, info os.FileInfo) FileTimes {
	ft := FileTimes{Access: info.ModTime(), Modify: info.ModTime(), Creation: info.ModTime()}

	var ts times.Timespec
	if _, ok := fs.(*afero.OsFs); ok {
		if t, err := times.Stat(path); err == nil {
			ts = t
		}
	}
	if ts == nil && info.Sys() != nil {
		ts = times.Get(info)
	}
	if ts == nil {
		return ft
	}

	ft.Access = ts.AccessTime()
	switch {
	case ts.HasBirthTime():
		ft.Creation = ts.BirthTime()
	case ts.HasChangeTime():
		ft.Creation = ts.ChangeTime()
	}
	return ft
}
