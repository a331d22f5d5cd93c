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
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forensicanalysis/forensicworkflow"
)

type configFlags uint8

const (
	sourceFlags configFlags = 1 << iota
	toolFlags
	storeFlags
)

func addConfigFlags(cmd *cobra.Command, cfg *forensicworkflow.Config, flags configFlags) {
	if flags&sourceFlags != 0 {
		cmd.Flags().StringVarP(&cfg.SourceDir, "source", "s", "", "evidence directory (env "+forensicworkflow.EnvSource+")")
		cmd.Flags().BoolVar(&cfg.ContinueOnError, "continue-on-error", false, "keep acquiring after a file failed to copy")
	}
	cmd.Flags().StringVarP(&cfg.WorkingDir, "working", "w", "", "working directory (env "+forensicworkflow.EnvWorking+")")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "files processed in parallel (env "+forensicworkflow.EnvWorkers+", default 1)")
	if flags&toolFlags != 0 {
		cmd.Flags().StringVarP(&cfg.ToolPath, "tool", "t", "", "metadata tool (env "+forensicworkflow.EnvTool+", default "+forensicworkflow.DefaultTool+")")
		cmd.Flags().DurationVar(&cfg.ToolTimeout, "tool-timeout", 0, "timeout per tool invocation, e.g. 30s")
	}
	if flags&storeFlags != 0 {
		cmd.Flags().StringVar(&cfg.StorePath, "store", "", "record evidence in this forensicstore (env "+forensicworkflow.EnvStore+")")
		cmd.Flags().BoolVar(&cfg.Pack, "pack", false, "pack the working copies into the forensicstore")
	}
}

// resolveConfig merges defaults into cfg and validates it. Without
// sourceFlags only the working directory settings are checked.
func resolveConfig(cfg forensicworkflow.Config, flags configFlags) (forensicworkflow.Config, error) {
	cfg, err := cfg.WithDefaults()
	if err != nil {
		return cfg, err
	}
	if flags&sourceFlags != 0 {
		err = cfg.Validate(afero.NewOsFs())
	} else {
		err = cfg.ValidateWorking()
	}
	return cfg, err
}

// Run creates the command that runs all stages.
func Run() *cobra.Command {
	var cfg forensicworkflow.Config
	flags := sourceFlags | toolFlags | storeFlags
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire, hash and extract metadata in one go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg, flags)
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := forensicworkflow.Run(cmd.Context(), afero.NewOsFs(), cfg, nil, cmd.OutOrStdout(), zap.L())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished in %s\n", result.Acquisition.RunID, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	addConfigFlags(runCmd, &cfg, flags)
	return runCmd
}

// Acquire creates the command that copies the evidence files.
func Acquire() *cobra.Command {
	var cfg forensicworkflow.Config
	acquireCmd := &cobra.Command{
		Use:   "acquire",
		Short: "Copy the evidence files into the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg, sourceFlags)
			if err != nil {
				return err
			}
			result, err := forensicworkflow.NewAcquirer(afero.NewOsFs(), cfg, cmd.OutOrStdout(), zap.L()).Acquire(cmd.Context())
			if err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				return errors.Errorf("%d files could not be copied", len(result.Failed))
			}
			return nil
		},
	}
	addConfigFlags(acquireCmd, &cfg, sourceFlags)
	return acquireCmd
}

// Hash creates the command that writes the hash manifest.
func Hash() *cobra.Command {
	var cfg forensicworkflow.Config
	hashCmd := &cobra.Command{
		Use:   "hash",
		Short: "Write the SHA-256 manifest of the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg, 0)
			if err != nil {
				return err
			}
			_, err = forensicworkflow.NewHasher(afero.NewOsFs(), cfg, cmd.OutOrStdout(), zap.L()).Hash(cmd.Context())
			return err
		},
	}
	addConfigFlags(hashCmd, &cfg, 0)
	return hashCmd
}

// Extract creates the command that writes the metadata report.
func Extract() *cobra.Command {
	var cfg forensicworkflow.Config
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Write the metadata report of the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg, toolFlags)
			if err != nil {
				return err
			}
			tool := forensicworkflow.NewExecTool(cfg.ToolPath, cfg.ToolTimeout)
			_, err = forensicworkflow.NewExtractor(afero.NewOsFs(), cfg, tool, cmd.OutOrStdout(), zap.L()).Extract(cmd.Context())
			return err
		},
	}
	addConfigFlags(extractCmd, &cfg, toolFlags)
	return extractCmd
}

// Verify creates the command that checks the working directory against
// its manifest.
func Verify() *cobra.Command {
	var cfg forensicworkflow.Config
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the working copies against the SHA-256 manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfg, 0)
			if err != nil {
				return err
			}
			verification, err := forensicworkflow.NewVerifier(afero.NewOsFs(), cfg, cmd.OutOrStdout(), zap.L()).Verify(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range verification.Unlisted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not in manifest\n", name)
			}
			if !verification.OK() {
				return errors.Errorf("verification failed: %d changed, %d missing",
					len(verification.Mismatched), len(verification.Missing))
			}
			return nil
		},
	}
	addConfigFlags(verifyCmd, &cfg, 0)
	return verifyCmd
}
