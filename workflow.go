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
	"context"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Result collects the outputs of a complete run.
type Result struct {
	Acquisition *AcquisitionResult
	Manifest    *Manifest
	Report      *Report
	// ElementIDs is empty unless a store is configured.
	ElementIDs []string
}

// Run validates cfg and runs acquisition, hashing, metadata extraction and,
// if a store is configured, recording. It stops at the first fatal error;
// the result holds the outputs of the stages that completed.
func Run(ctx context.Context, fs afero.Fs, cfg Config, tool MetadataTool, out io.Writer, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(fs); err != nil {
		return nil, err
	}
	if tool == nil {
		tool = NewExecTool(cfg.ToolPath, cfg.ToolTimeout)
	}

	logger.Info("workflow started", zap.String("source", cfg.SourceDir), zap.String("working", cfg.WorkingDir))

	result := &Result{}
	var err error
	result.Acquisition, err = NewAcquirer(fs, cfg, out, logger).Acquire(ctx)
	if err != nil {
		return result, err
	}
	result.Manifest, err = NewHasher(fs, cfg, out, logger).Hash(ctx)
	if err != nil {
		return result, err
	}
	result.Report, err = NewExtractor(fs, cfg, tool, out, logger).Extract(ctx)
	if err != nil {
		return result, err
	}
	if cfg.StorePath != "" {
		result.ElementIDs, err = NewRecorder(fs, cfg, out, logger).Record(ctx, result.Acquisition.RunID, result.Manifest, result.Report)
		if err != nil {
			return result, err
		}
	}

	logger.Info("workflow complete", zap.String("run", result.Acquisition.RunID))
	return result, nil
}
