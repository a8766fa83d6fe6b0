// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/siderolabs/go-trimcheck/block"
	"github.com/siderolabs/go-trimcheck/discard"
	"github.com/siderolabs/go-trimcheck/extent"
)

// Locator resolves the physical location of a file.
type Locator interface {
	Locate(path string) (extent.Location, error)
}

// Discarder discards the free space of the filesystem mounted from the device.
type Discarder interface {
	Discard(device string) (discard.Result, error)
}

// Reader reads raw bytes from the device.
type Reader interface {
	ReadPhysical(device string, offset int64, length int) ([]byte, error)
}

// ReaderFunc is a Reader function.
type ReaderFunc func(device string, offset int64, length int) ([]byte, error)

// ReadPhysical implements Reader.
func (f ReaderFunc) ReadPhysical(device string, offset int64, length int) ([]byte, error) {
	return f(device, offset, length)
}

// Options are collaborators of the Prober.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger

	Locator   Locator
	Discarder Discarder
	Reader    Reader

	// Random is the source of the probe contents.
	Random io.Reader
	// Sleep waits for the duration or until the context is canceled.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Option is an option for the Prober.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithLocator sets the probe file locator.
func WithLocator(locator Locator) Option {
	return func(o *Options) {
		o.Locator = locator
	}
}

// WithDiscarder sets the discarder.
func WithDiscarder(discarder Discarder) Option {
	return func(o *Options) {
		o.Discarder = discarder
	}
}

// WithReader sets the raw device reader.
func WithReader(reader Reader) Option {
	return func(o *Options) {
		o.Reader = reader
	}
}

// WithRandom sets the source of the probe contents.
func WithRandom(r io.Reader) Option {
	return func(o *Options) {
		o.Random = r
	}
}

// WithSleep replaces the settle wait implementation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Options) {
		o.Sleep = sleep
	}
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger: zap.NewNop(),
		Random: rand.Reader,
		Sleep:  sleep,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.Locator == nil {
		o.Locator = extent.Resolver{}
	}

	if o.Discarder == nil {
		o.Discarder = discard.New(discard.WithLogger(o.Logger))
	}

	if o.Reader == nil {
		o.Reader = ReaderFunc(block.ReadPhysical)
	}

	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
