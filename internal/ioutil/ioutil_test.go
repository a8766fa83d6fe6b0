// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ioutil_test

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-trimcheck/internal/ioutil"
)

// oneByteReaderAt returns at most one byte per call.
type oneByteReaderAt struct {
	r io.ReaderAt
}

func (o oneByteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}

	return o.r.ReadAt(p, off)
}

func TestReadFullAt(t *testing.T) {
	data := []byte("0123456789abcdef")

	for _, test := range []struct {
		name   string
		r      io.ReaderAt
		offset int64
		size   int

		expected    []byte
		expectedErr error
	}{
		{
			name:     "whole",
			r:        bytes.NewReader(data),
			size:     len(data),
			expected: data,
		},
		{
			name:     "middle",
			r:        bytes.NewReader(data),
			offset:   4,
			size:     4,
			expected: []byte("4567"),
		},
		{
			name:     "one byte at a time",
			r:        oneByteReaderAt{r: bytes.NewReader(data)},
			offset:   10,
			size:     6,
			expected: []byte("abcdef"),
		},
		{
			name:        "short",
			r:           bytes.NewReader(data),
			offset:      12,
			size:        8,
			expected:    []byte("cdef"),
			expectedErr: io.ErrUnexpectedEOF,
		},
		{
			name:        "failing reader",
			r:           readerAtFunc(func([]byte, int64) (int, error) { return 0, iotest.ErrTimeout }),
			size:        4,
			expected:    []byte{},
			expectedErr: iotest.ErrTimeout,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf := make([]byte, test.size)

			n, err := ioutil.ReadFullAt(test.r, buf, test.offset)
			if test.expectedErr != nil {
				require.ErrorIs(t, err, test.expectedErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, test.expected, buf[:n])
		})
	}
}

type readerAtFunc func([]byte, int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) {
	return f(p, off)
}
