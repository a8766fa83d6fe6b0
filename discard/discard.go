// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package discard issues filesystem-level discard (FITRIM) requests for blockdevices.
package discard

import (
	"errors"

	"go.uber.org/zap"
)

// Common errors.
var (
	ErrNotMounted = errors.New("device is not mounted")
	ErrDiscard    = errors.New("discard request failed")
)

// Result of the discard request.
type Result struct {
	// Mountpoint the request was issued on.
	Mountpoint string
	// Discarded is the number of bytes the filesystem reports as discarded.
	Discarded uint64
}

// Options for the Discarder.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger
	// MountInfoPath overrides the live mount table (/proc/self/mountinfo).
	MountInfoPath string
}

// Option is an option for the Discarder.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMountInfoPath reads mounts from the specified mountinfo file.
func WithMountInfoPath(path string) Option {
	return func(o *Options) {
		o.MountInfoPath = path
	}
}

// Discarder triggers discard for the filesystem mounted from a blockdevice.
type Discarder struct {
	options Options
}

// New returns a new Discarder.
func New(opts ...Option) *Discarder {
	o := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Discarder{options: o}
}
