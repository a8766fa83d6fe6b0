// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package report persists the probe location between the write and verify runs.
//
// The report is a plain text file with fixed line order:
//
//	partition=<path>
//	offset=<decimal byte offset>
//	size=<decimal byte count>
//	checksum=<hex fingerprint, no 0x prefix>
//	discard=<true|false>
//
// The last line is optional.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/internal/kv"
)

// DefaultPath is the default report file name.
const DefaultPath = "trimcheck_report.txt"

// ErrFormat is returned for reports with missing or malformed fields.
var ErrFormat = errors.New("malformed report")

// Report keys.
const (
	KeyPartition = "partition"
	KeyOffset    = "offset"
	KeySize      = "size"
	KeyChecksum  = "checksum"
	KeyDiscard   = "discard"
)

var requiredKeys = []string{KeyPartition, KeyOffset, KeySize, KeyChecksum}

// Report describes where the probe data was located and what it looked like.
type Report struct { //nolint:govet
	// Partition is the blockdevice path.
	Partition string
	// Offset is the physical byte offset of the probe on the blockdevice.
	Offset uint64
	// Size of the probe in bytes.
	Size int
	// Checksum of the probe contents.
	Checksum checksum.Fingerprint

	// Discarded records whether discard was issued after deleting the probe.
	//
	// Nil if unknown (report written without the field).
	Discarded *bool
}

// Encode writes the report to w.
func Encode(w io.Writer, r Report) error {
	for _, field := range [][2]string{
		{KeyPartition, r.Partition},
		{KeyOffset, strconv.FormatUint(r.Offset, 10)},
		{KeySize, strconv.Itoa(r.Size)},
		{KeyChecksum, r.Checksum.String()},
	} {
		if err := kv.Write(w, field[0], field[1]); err != nil {
			return err
		}
	}

	if r.Discarded != nil {
		return kv.Write(w, KeyDiscard, strconv.FormatBool(*r.Discarded))
	}

	return nil
}

// Decode reads the report from rd.
func Decode(rd io.Reader) (Report, error) {
	records, err := kv.Parse(rd)
	if err != nil {
		if errors.Is(err, kv.ErrSyntax) {
			return Report{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}

		return Report{}, err
	}

	if len(records) < len(requiredKeys) {
		return Report{}, fmt.Errorf("%w: expected at least %d fields, got %d", ErrFormat, len(requiredKeys), len(records))
	}

	for i, key := range requiredKeys {
		if records[i].Key != key {
			return Report{}, fmt.Errorf("%w: line %d: expected %q, got %q", ErrFormat, records[i].Line, key, records[i].Key)
		}
	}

	var r Report

	if r.Partition = records[0].Value; r.Partition == "" {
		return Report{}, fmt.Errorf("%w: empty %s", ErrFormat, KeyPartition)
	}

	if r.Offset, err = strconv.ParseUint(records[1].Value, 10, 64); err != nil {
		return Report{}, fmt.Errorf("%w: %s: %w", ErrFormat, KeyOffset, err)
	}

	if r.Size, err = strconv.Atoi(records[2].Value); err != nil {
		return Report{}, fmt.Errorf("%w: %s: %w", ErrFormat, KeySize, err)
	}

	if r.Size <= 0 {
		return Report{}, fmt.Errorf("%w: %s must be positive: %d", ErrFormat, KeySize, r.Size)
	}

	if r.Checksum, err = checksum.Parse(records[3].Value); err != nil {
		return Report{}, fmt.Errorf("%w: %s: %w", ErrFormat, KeyChecksum, err)
	}

	extra := records[len(requiredKeys):]

	if len(extra) > 0 {
		if extra[0].Key != KeyDiscard || len(extra) > 1 {
			return Report{}, fmt.Errorf("%w: line %d: unexpected field %q", ErrFormat, extra[0].Line, extra[0].Key)
		}

		discarded, err := strconv.ParseBool(extra[0].Value)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %s: %w", ErrFormat, KeyDiscard, err)
		}

		r.Discarded = pointer.To(discarded)
	}

	return r, nil
}

// Save writes the report to path, replacing any existing file.
func Save(path string, r Report) error {
	var buf bytes.Buffer

	if err := Encode(&buf, r); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load reads the report from path.
func Load(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}

	defer f.Close() //nolint:errcheck

	r, err := Decode(f)
	if err != nil {
		return Report{}, fmt.Errorf("report %q: %w", path, err)
	}

	return r, nil
}

// Exists returns true if the report file is present.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
