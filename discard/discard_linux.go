// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package discard

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Linux headers constants.
//
// Hardcoded here to avoid CGo dependency.
//
//nolint:revive,stylecheck
const (
	FITRIM = 0xc0185879
)

type fstrimRange struct {
	Start  uint64
	Len    uint64
	MinLen uint64
}

// Discard finds the mountpoint of the device and discards all free blocks of the filesystem.
//
// A single request is issued, the number of discarded bytes might be lower than the
// amount of free space.
func (d *Discarder) Discard(device string) (Result, error) {
	mountpoint, err := d.FindMountpoint(device)
	if err != nil {
		return Result{}, err
	}

	d.options.Logger.Debug("issuing discard", zap.String("device", device), zap.String("mountpoint", mountpoint))

	discarded, err := Trim(mountpoint)
	if err != nil {
		return Result{Mountpoint: mountpoint}, err
	}

	return Result{
		Mountpoint: mountpoint,
		Discarded:  discarded,
	}, nil
}

// Trim issues FITRIM over the whole range of the filesystem mounted at mountpoint.
//
// It returns the number of bytes discarded as reported by the filesystem.
func Trim(mountpoint string) (uint64, error) {
	f, err := os.Open(mountpoint)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDiscard, err)
	}

	defer f.Close() //nolint:errcheck

	r := fstrimRange{
		Start: 0,
		Len:   math.MaxUint64,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), FITRIM, uintptr(unsafe.Pointer(&r)))

	runtime.KeepAlive(f)

	if errno != 0 {
		return 0, fmt.Errorf("%w: FITRIM %q: %w", ErrDiscard, mountpoint, errno)
	}

	return r.Len, nil
}
