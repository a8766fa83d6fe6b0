// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package trimcheck verifies that discard (TRIM) erases data on the physical media.
//
// The check runs in two separate invocations. The write phase creates a probe file with
// random contents, finds its physical location on the backing blockdevice, deletes it,
// discards the free space of the filesystem and persists a report. The verify phase
// loads the report and compares the contents of the physical location with the
// recorded checksum.
package trimcheck

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/report"
)

// Common errors.
var (
	ErrChecksumSelfCheck = errors.New("probe file checksum doesn't match the data on the device")
	ErrMissingParameter  = errors.New("missing parameter")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Defaults and limits.
const (
	DefaultSize       = 1024 * 1024
	DefaultSettleWait = 10 * time.Second
	MaxProbeSize      = 1024 * 1024 * 1024

	// HeadSize is the number of leading bytes surfaced for visual inspection.
	HeadSize = 16
)

// Config is the configuration of a single run.
type Config struct { //nolint:govet
	// FileName is the probe file path, created in the current directory by default.
	FileName string
	// Size of the probe in bytes.
	Size int
	// SettleWait is the pause after writing the probe, before resolving its location.
	SettleWait time.Duration
	// Partition overrides the resolved blockdevice (write phase) or selects
	// the device to read (direct mode).
	Partition string
	// Offset is the physical byte offset to read in direct mode.
	Offset uint64
	// ReportPath is the report file location.
	ReportPath string
	// SkipDiscard disables the discard step of the write phase.
	SkipDiscard bool
	// Direct runs the checksum of Partition at Offset without the report.
	Direct bool
	// Expected is the checksum to compare against in direct mode.
	Expected *checksum.Fingerprint
	// Verbose includes probe buffer heads in the results.
	Verbose bool
}

// DefaultConfig returns the default configuration with a random probe file name.
func DefaultConfig() Config {
	return Config{
		FileName:   DefaultFileName(),
		Size:       DefaultSize,
		SettleWait: DefaultSettleWait,
		ReportPath: report.DefaultPath,
	}
}

// DefaultFileName returns a random probe file name.
func DefaultFileName() string {
	return "trimcheck-" + uuid.NewString()[:8] + ".bin"
}

// Validate the configuration.
func (c Config) Validate() error {
	if c.Direct {
		if c.Partition == "" {
			return fmt.Errorf("%w: partition is required for the checksum mode", ErrMissingParameter)
		}

		if c.Size <= 0 {
			return fmt.Errorf("%w: size is required for the checksum mode", ErrMissingParameter)
		}
	}

	if c.Size <= 0 || c.Size > MaxProbeSize {
		return fmt.Errorf("%w: size %d is out of range (0, %d]", ErrInvalidConfig, c.Size, MaxProbeSize)
	}

	if c.SettleWait < 0 {
		return fmt.Errorf("%w: negative wait time %s", ErrInvalidConfig, c.SettleWait)
	}

	if !c.Direct {
		if c.FileName == "" {
			return fmt.Errorf("%w: probe file name is empty", ErrInvalidConfig)
		}

		if c.ReportPath == "" {
			return fmt.Errorf("%w: report path is empty", ErrInvalidConfig)
		}
	}

	return nil
}
