// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ioutil provides IO utility functions.
package ioutil

import (
	"errors"
	"io"
)

// ReadFullAt is io.ReadFull for io.ReaderAt.
//
// It returns the number of bytes read; if fewer than len(buf) bytes could be read
// before the end of input, the error is io.ErrUnexpectedEOF.
func ReadFullAt(r io.ReaderAt, buf []byte, offset int64) (int, error) {
	n := 0

	for n < len(buf) {
		m, err := r.ReadAt(buf[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			if errors.Is(err, io.EOF) && n == len(buf) {
				return n, nil
			}

			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}

			return n, err
		}

		if m == 0 {
			return n, io.ErrNoProgress
		}
	}

	return n, nil
}
