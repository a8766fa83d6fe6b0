// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package checksum computes content fingerprints of probed buffers.
package checksum

import (
	"fmt"
	"hash/crc32"
	"strconv"
)

// Fingerprint is the IEEE CRC-32 of a buffer (zlib's crc32() with zero seed).
type Fingerprint uint32

// Compute returns the fingerprint of buf.
func Compute(buf []byte) Fingerprint {
	return Fingerprint(crc32.ChecksumIEEE(buf))
}

// String returns lower-case hex without the 0x prefix.
func (f Fingerprint) String() string {
	return strconv.FormatUint(uint64(f), 16)
}

// Parse parses the String representation, an optional 0x prefix is accepted.
func Parse(s string) (Fingerprint, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid checksum %q: %w", s, err)
	}

	return Fingerprint(v), nil
}
