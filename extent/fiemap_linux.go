// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package extent

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux headers constants.
//
// Hardcoded here to avoid CGo dependency.
//
//nolint:revive,stylecheck
const (
	FS_IOC_FIEMAP     = 0xc020660b
	FIEMAP_FLAG_SYNC  = 0x00000001
	FIEMAP_MAX_OFFSET = ^uint64(0)
)

type fiemapExtent struct {
	Logical  uint64
	Physical uint64
	Length   uint64
	_        [2]uint64
	Flags    uint32
	_        [3]uint32
}

type fiemap struct {
	Start         uint64
	Length        uint64
	Flags         uint32
	MappedExtents uint32
	ExtentCount   uint32
	_             uint32
	Extents       [1]fiemapExtent
}

// LocateFirstExtent returns the physical byte offset of the first extent of the file.
//
// Zero is returned for files without mapped extents.
func LocateFirstExtent(path string) (uint64, error) {
	ext, err := FirstExtent(path)
	if err != nil {
		return 0, err
	}

	return ext.Physical, nil
}

// FirstExtent queries the first mapped extent of the file.
func FirstExtent(path string) (Extent, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extent{}, fmt.Errorf("%w: %w", ErrExtentQuery, err)
	}

	defer f.Close() //nolint:errcheck

	return firstExtent(f)
}

func firstExtent(f *os.File) (Extent, error) {
	fm := fiemap{
		Length:      FIEMAP_MAX_OFFSET,
		Flags:       FIEMAP_FLAG_SYNC,
		ExtentCount: 1,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), FS_IOC_FIEMAP, uintptr(unsafe.Pointer(&fm)))

	runtime.KeepAlive(f)

	if errno != 0 {
		return Extent{}, fmt.Errorf("%w: FS_IOC_FIEMAP %q: %w", ErrExtentQuery, f.Name(), errno)
	}

	if fm.MappedExtents == 0 {
		return Extent{}, nil
	}

	return Extent{
		Logical:  fm.Extents[0].Logical,
		Physical: fm.Extents[0].Physical,
		Length:   fm.Extents[0].Length,
		Flags:    Flags(fm.Extents[0].Flags),
	}, nil
}
