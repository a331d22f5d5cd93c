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
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Names of the files written into the working directory.
const (
	AuditLogName = "acq_log.txt"
	ManifestName = "hashes.txt"
	ReportName   = "metadata.txt"
)

// DefaultTool is the metadata tool used if none is configured.
const DefaultTool = "exiftool"

// Environment variables consulted for unset configuration values.
const (
	EnvSource  = "FORENSIC_SOURCE"
	EnvWorking = "FORENSIC_WORKING"
	EnvTool    = "FORENSIC_TOOL"
	EnvStore   = "FORENSIC_STORE"
	EnvWorkers = "FORENSIC_WORKERS"
)

// Config holds everything a run needs. It is resolved and validated once,
// before any stage starts.
type Config struct {
	SourceDir  string
	WorkingDir string
	ToolPath   string

	// StorePath enables recording into a forensicstore.
	StorePath string
	// Pack stores the working copies inside the forensicstore as well.
	Pack bool

	// Workers bounds the number of files hashed or extracted in parallel.
	Workers int
	// ToolTimeout limits a single metadata tool invocation, 0 disables it.
	ToolTimeout time.Duration
	// ContinueOnError keeps acquiring after a file failed to copy.
	ContinueOnError bool
}

// DefaultConfig returns the defaults merged into every configuration.
func DefaultConfig() Config {
	return Config{
		ToolPath: DefaultTool,
		Workers:  1,
	}
}

// ConfigFromEnv reads the configuration from the environment.
func ConfigFromEnv() Config {
	cfg := Config{
		SourceDir:  os.Getenv(EnvSource),
		WorkingDir: os.Getenv(EnvWorking),
		ToolPath:   os.Getenv(EnvTool),
		StorePath:  os.Getenv(EnvStore),
	}
	if workers, err := strconv.Atoi(os.Getenv(EnvWorkers)); err == nil {
		cfg.Workers = workers
	}
	return cfg
}

// WithDefaults fills unset values, first from the environment and then from
// DefaultConfig.
func (c Config) WithDefaults() (Config, error) {
	merged := c
	if err := mergo.Merge(&merged, ConfigFromEnv()); err != nil {
		return c, errors.Wrap(err, "could not merge environment")
	}
	if err := mergo.Merge(&merged, DefaultConfig()); err != nil {
		return c, errors.Wrap(err, "could not merge defaults")
	}
	return merged, nil
}

// Validate makes all paths absolute and checks the source directory and
// everything ValidateWorking checks.
func (c *Config) Validate(fs afero.Fs) error {
	if c.SourceDir == "" {
		return &DirectoryAccessError{Stage: StageConfig, Err: errors.New("source directory not set")}
	}
	if err := c.ValidateWorking(); err != nil {
		return err
	}

	var err error
	if c.SourceDir, err = filepath.Abs(c.SourceDir); err != nil {
		return &DirectoryAccessError{Stage: StageConfig, Path: c.SourceDir, Err: err}
	}
	info, err := fs.Stat(c.SourceDir)
	if err != nil {
		return &DirectoryAccessError{Stage: StageConfig, Path: c.SourceDir, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryAccessError{Stage: StageConfig, Path: c.SourceDir, Err: errors.New("not a directory")}
	}
	if c.SourceDir == c.WorkingDir {
		return errors.New("working directory must differ from the source directory")
	}
	return nil
}

// ValidateWorking checks the settings needed by stages that only work on
// the working directory.
func (c *Config) ValidateWorking() error {
	if c.WorkingDir == "" {
		return &DirectoryAccessError{Stage: StageConfig, Err: errors.New("working directory not set")}
	}

	var err error
	if c.WorkingDir, err = filepath.Abs(c.WorkingDir); err != nil {
		return &DirectoryAccessError{Stage: StageConfig, Path: c.WorkingDir, Err: err}
	}
	if c.StorePath != "" && c.StorePath != ":memory:" {
		if c.StorePath, err = filepath.Abs(c.StorePath); err != nil {
			return errors.Wrap(err, "invalid store path")
		}
	}

	if c.ToolPath == "" {
		return errors.New("metadata tool not set")
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ToolTimeout < 0 {
		return errors.Errorf("negative tool timeout %s", c.ToolTimeout)
	}
	if c.Pack && c.StorePath == "" {
		return errors.New("packing requires a store")
	}
	return nil
}
