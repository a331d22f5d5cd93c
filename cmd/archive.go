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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forensicanalysis/forensicworkflow/forensicstore"
)

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <forensicstore>",
		Short: "List the files packed into the forensicstore",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			return afero.Walk(store.Fs(), "/", func(walkPath string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", strings.TrimPrefix(filepath.ToSlash(walkPath), "/"), info.Size())
				}
				return nil
			})
		},
	}
}

func unpackCommand() *cobra.Command {
	var basename bool
	unpackCmd := &cobra.Command{
		Use:   "unpack <forensicstore> <destination>",
		Short: "Extract the packed files from the forensicstore",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := forensicstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			srcFS := store.Fs()
			destFS := afero.NewBasePathFs(afero.NewOsFs(), args[1])

			return afero.Walk(srcFS, "/", func(srcPath string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return nil
				}

				srcPath = filepath.ToSlash(srcPath)
				dest := srcPath
				if basename {
					dest = path.Base(srcPath)
				}
				zap.L().Debug("unpack", zap.String("file", srcPath), zap.String("destination", dest))
				fmt.Fprintf(cmd.OutOrStdout(), "unpack '%s' to '%s'\n", strings.TrimPrefix(srcPath, "/"), filepath.Join(args[1], dest))
				return copyItem(srcFS, destFS, srcPath, dest)
			})
		},
	}
	unpackCmd.Flags().BoolVar(&basename, "basename", false, "drop the run directories")
	return unpackCmd
}

func copyItem(srcFS, destFS afero.Fs, srcPath, destPath string) error {
	if err := destFS.MkdirAll(path.Dir(destPath), 0750); err != nil {
		return err
	}
	if exists, err := afero.Exists(destFS, destPath); err != nil {
		return err
	} else if exists {
		return errors.Wrap(os.ErrExist, destPath)
	}

	src, err := srcFS.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := destFS.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close() // nolint:errcheck
		return err
	}
	return dest.Close()
}
