// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/internal/ioutil"
)

// ReadAt reads exactly len(buf) bytes at the specified byte offset.
//
// Short reads are reported as io.ErrUnexpectedEOF.
func (d *Device) ReadAt(buf []byte, offset int64) (int, error) {
	return ioutil.ReadFullAt(d.f, buf, offset)
}

// DropCache asks the kernel to evict cached pages of the range [offset, offset+length).
func (d *Device) DropCache(offset, length int64) error {
	return unix.Fadvise(int(d.f.Fd()), offset, length, unix.FADV_DONTNEED)
}

// ReadPhysical reads length bytes at the byte offset of the device at path.
//
// The device is opened read-only for the duration of the call. Page cache for the
// range is dropped before reading, so the data reflects the media as closely as the
// kernel allows. A read which can't be fully satisfied fails with ErrRead.
func ReadPhysical(path string, offset int64, length int) ([]byte, error) {
	if offset < 0 || length <= 0 {
		return nil, fmt.Errorf("%w: invalid range offset %d length %d", ErrRead, offset, length)
	}

	d, err := NewFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrOpen, path, err)
	}

	defer d.Close() //nolint:errcheck

	size, err := d.GetSize()
	if err != nil {
		return nil, fmt.Errorf("%w %q: failed to get size: %w", ErrRead, path, err)
	}

	if uint64(offset)+uint64(length) > size {
		return nil, fmt.Errorf("%w %q: range [%d, %d) is out of bounds: size %d", ErrRead, path, offset, offset+int64(length), size)
	}

	d.DropCache(offset, int64(length)) //nolint:errcheck // best-effort

	buf := make([]byte, length)

	n, err := d.ReadAt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("%w %q: read %d of %d bytes at offset %d: %w", ErrRead, path, n, length, offset, err)
	}

	return buf, nil
}
