// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/report"
)

// Prober runs the TRIM check.
type Prober struct {
	cfg     Config
	options Options

	mu sync.Mutex
	// probePath is set while the probe file exists on disk.
	probePath string
}

// New validates the configuration and returns a new Prober.
func New(cfg Config, opts ...Option) (*Prober, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Prober{
		cfg:     cfg,
		options: applyOptions(opts...),
	}, nil
}

// Run selects the phase and runs it.
//
// Direct mode always runs the checksum of the configured location. Otherwise the
// verify phase runs if the report exists, and the write phase runs if it doesn't.
func (p *Prober) Run(ctx context.Context) (Result, error) {
	if p.cfg.Direct {
		res, err := p.Direct(ctx)
		if err != nil {
			return Result{Phase: PhaseDirect}, err
		}

		return Result{Phase: PhaseDirect, Verify: res}, nil
	}

	exists, err := report.Exists(p.cfg.ReportPath)
	if err != nil {
		return Result{}, err
	}

	if exists {
		p.options.Logger.Info("report found, verifying", zap.String("report", p.cfg.ReportPath))

		res, err := p.Verify(ctx)
		if err != nil {
			return Result{Phase: PhaseVerify}, err
		}

		return Result{Phase: PhaseVerify, Verify: res}, nil
	}

	p.options.Logger.Info("report not found, writing probe", zap.String("report", p.cfg.ReportPath))

	res, err := p.Write(ctx)
	if err != nil {
		return Result{Phase: PhaseWrite}, err
	}

	return Result{Phase: PhaseWrite, Write: res}, nil
}

// Abort removes the probe file if it still exists.
//
// It is safe to call concurrently with Run, e.g. from a signal handler.
func (p *Prober) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.probePath == "" {
		return nil
	}

	path := p.probePath

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove probe file %q: %w", path, err)
	}

	p.probePath = ""

	p.options.Logger.Debug("removed probe file", zap.String("path", path))

	return nil
}

// createProbe creates the probe file exclusively and records it for Abort.
//
// Creation and tracking happen under the lock, so a concurrent Abort either runs
// before the file exists or sees it.
func (p *Prober) createProbe(path string) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe file: %w", err)
	}

	p.probePath = path

	return f, nil
}
