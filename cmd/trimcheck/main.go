// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main implements the trimcheck CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/siderolabs/go-pointer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/report"
	"github.com/siderolabs/go-trimcheck/trimcheck"
)

var flags struct {
	verbose    bool
	offset     uint64
	partition  string
	size       int
	name       string
	direct     bool
	expected   string
	noDiscard  bool
	reportFile string
	waitTime   int
}

var rootCmd = &cobra.Command{
	Use:   "trimcheck",
	Short: "Check whether discard (TRIM) erases data on the device",
	Long: `trimcheck verifies that discard requests actually erase data on the physical media.

The first run writes a probe file with random contents, locates it on the
blockdevice, deletes it, discards the free space of the filesystem and saves
a report. The next run (after a reboot or a while) reads the same location
from the blockdevice and compares it with the checksum from the report.

With --checksum the checksum of the specified partition range is printed
without the report.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := newLogger(flags.verbose)
		if err != nil {
			return err
		}

		defer logger.Sync() //nolint:errcheck

		return run(cmd.Context(), cmd, cfg, logger)
	},
}

func init() {
	bindFlags(rootCmd.Flags())
}

func bindFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	fs.Uint64VarP(&flags.offset, "offset", "o", 0, "physical byte offset to check (with --checksum)")
	fs.StringVarP(&flags.partition, "partition", "d", "", "blockdevice path, overrides the resolved device")
	fs.IntVarP(&flags.size, "size", "s", trimcheck.DefaultSize, "probe size in bytes")
	fs.StringVarP(&flags.name, "name", "n", "", "probe file name (random by default)")
	fs.BoolVarP(&flags.direct, "checksum", "c", false, "print the checksum of --partition at --offset, bypassing the report")
	fs.StringVarP(&flags.expected, "expected-checksum", "e", "", "checksum to compare against (with --checksum)")
	fs.BoolVarP(&flags.noDiscard, "no-discard", "N", false, "don't issue discard after deleting the probe")
	fs.StringVarP(&flags.reportFile, "report-file", "f", report.DefaultPath, "report file path")
	fs.IntVarP(&flags.waitTime, "wait-time", "w", int(trimcheck.DefaultSettleWait/time.Second), "seconds to wait after writing the probe")
}

func buildConfig(cmd *cobra.Command) (trimcheck.Config, error) {
	cfg := trimcheck.DefaultConfig()

	cfg.Verbose = flags.verbose
	cfg.Offset = flags.offset
	cfg.Partition = flags.partition
	cfg.Size = flags.size
	cfg.Direct = flags.direct
	cfg.SkipDiscard = flags.noDiscard
	cfg.ReportPath = flags.reportFile
	cfg.SettleWait = time.Duration(flags.waitTime) * time.Second

	if flags.name != "" {
		cfg.FileName = flags.name
	}

	if cfg.Direct && !cmd.Flags().Changed("size") {
		return cfg, fmt.Errorf("%w: --size is required with --checksum", trimcheck.ErrMissingParameter)
	}

	if flags.expected != "" {
		expected, err := checksum.Parse(flags.expected)
		if err != nil {
			return cfg, fmt.Errorf("%w: --expected-checksum: %w", trimcheck.ErrInvalidConfig, err)
		}

		cfg.Expected = pointer.To(expected)
	}

	return cfg, cfg.Validate()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true

	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func run(ctx context.Context, cmd *cobra.Command, cfg trimcheck.Config, logger *zap.Logger) error {
	prober, err := trimcheck.New(cfg, trimcheck.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)

	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			logger.Warn("interrupted, cleaning up", zap.Stringer("signal", sig))

			cancel()

			if abortErr := prober.Abort(); abortErr != nil {
				logger.Error("cleanup failed", zap.Error(abortErr))
			}

			os.Exit(int(unix.EINTR))
		}
	}()

	res, err := prober.Run(ctx)
	if err != nil {
		return err
	}

	render(cmd.OutOrStdout(), res)

	return nil
}

func exitCode(err error) int {
	var errno unix.Errno

	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}

	return 1
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)

		os.Exit(exitCode(err))
	}
}
