// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package extent resolves the physical location of a file on its backing blockdevice.
package extent

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrExtentQuery   = errors.New("failed to query file extents")
	ErrDeviceResolve = errors.New("failed to resolve backing device")
)

// Flags are FIEMAP_EXTENT_* flags.
type Flags uint32

// Extent flags as defined in linux/fiemap.h.
//
//nolint:revive,stylecheck
const (
	FlagLast          Flags = 0x00000001
	FlagUnknown       Flags = 0x00000002
	FlagDelalloc      Flags = 0x00000004
	FlagEncoded       Flags = 0x00000008
	FlagDataEncrypted Flags = 0x00000080
	FlagNotAligned    Flags = 0x00000100
	FlagDataInline    Flags = 0x00000200
	FlagDataTail      Flags = 0x00000400
	FlagUnwritten     Flags = 0x00000800
	FlagMerged        Flags = 0x00001000
	FlagShared        Flags = 0x00002000
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagLast, "last"},
	{FlagUnknown, "unknown"},
	{FlagDelalloc, "delalloc"},
	{FlagEncoded, "encoded"},
	{FlagDataEncrypted, "encrypted"},
	{FlagNotAligned, "not_aligned"},
	{FlagDataInline, "inline"},
	{FlagDataTail, "tail"},
	{FlagUnwritten, "unwritten"},
	{FlagMerged, "merged"},
	{FlagShared, "shared"},
}

func (f Flags) String() string {
	var names []string

	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}

	return strings.Join(names, ",")
}

// Unreliable is true if the physical address of the extent can't be used for raw access.
func (f Flags) Unreliable() bool {
	return f&(FlagUnknown|FlagDelalloc|FlagEncoded|FlagDataEncrypted|FlagNotAligned|FlagDataInline) != 0
}

// Extent is a single mapped extent of a file.
type Extent struct {
	// Logical offset in bytes from the beginning of the file.
	Logical uint64
	// Physical offset in bytes from the beginning of the blockdevice.
	Physical uint64
	// Length of the extent in bytes.
	Length uint64

	Flags Flags
}

// Location is the physical location of a file's first extent.
//
// It is valid only as long as the file mapping doesn't change.
type Location struct {
	// Device is the path to the block special file.
	Device string

	Extent
}
