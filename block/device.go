// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides raw access to blockdevices bypassing the filesystem.
package block

import (
	"errors"
	"os"
)

// Common errors.
var (
	ErrOpen = errors.New("failed to open device")
	ErrRead = errors.New("failed to read device")
)

// Device wraps blockdevice operations.
type Device struct {
	f *os.File

	ownedFile bool
	devNo     uint64
}

// NewFromFile returns a new Device from the specified file.
//
// The file is not closed by Device.Close.
func NewFromFile(f *os.File) *Device {
	return &Device{f: f}
}

// Close the device.
//
// No-op if the device was created from a file.
func (d *Device) Close() error {
	if d.ownedFile {
		return d.f.Close()
	}

	return nil
}

// Name returns the path the device was opened with.
func (d *Device) Name() string {
	return d.f.Name()
}

// DefaultBlockSize is the default block size in bytes.
const DefaultBlockSize = 512
