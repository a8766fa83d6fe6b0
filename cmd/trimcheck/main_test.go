// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/block"
	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/discard"
	"github.com/siderolabs/go-trimcheck/report"
	"github.com/siderolabs/go-trimcheck/trimcheck"
)

func TestExitCode(t *testing.T) {
	for _, test := range []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "errno",
			err:      fmt.Errorf("%w /dev/sdz: %w", block.ErrOpen, unix.ENOENT),
			expected: int(unix.ENOENT),
		},
		{
			name:     "wrapped twice",
			err:      fmt.Errorf("outer: %w", fmt.Errorf("%w: FITRIM: %w", discard.ErrDiscard, unix.EOPNOTSUPP)),
			expected: int(unix.EOPNOTSUPP),
		},
		{
			name:     "no errno",
			err:      fmt.Errorf("%w: %q", discard.ErrNotMounted, "/dev/sdz1"),
			expected: 1,
		},
		{
			name:     "plain",
			err:      errors.New("boom"),
			expected: 1,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, exitCode(test.err))
		})
	}
}

func TestRenderWrite(t *testing.T) {
	var sb strings.Builder

	render(&sb, trimcheck.Result{
		Phase: trimcheck.PhaseWrite,
		Write: &trimcheck.WriteResult{
			ReportPath: report.DefaultPath,
			Report: report.Report{
				Partition: "/dev/sda1",
				Offset:    4096,
				Size:      1024 * 1024,
				Checksum:  0xcbf43926,
			},
			Discard: &discard.Result{
				Mountpoint: "/var",
				Discarded:  2048 * 1024 * 1024,
			},
			FileHead: []byte{0x00, 0xab},
			RawHead:  []byte{0x00, 0xab},
		},
	})

	out := sb.String()

	assert.Contains(t, out, "device:   /dev/sda1\n")
	assert.Contains(t, out, "size:     1.0 MiB\n")
	assert.Contains(t, out, "checksum: cbf43926\n")
	assert.Contains(t, out, "file:     00 ab\n")
	assert.Contains(t, out, "discarded 2.0 GiB on /var\n")
	assert.Contains(t, out, "report saved to trimcheck_report.txt")
}

func TestRenderVerify(t *testing.T) {
	const sum checksum.Fingerprint = 0xcbf43926

	for _, test := range []struct {
		name     string
		phase    trimcheck.Phase
		result   trimcheck.VerifyResult
		contains []string
		excludes []string
	}{
		{
			name:  "ineffective",
			phase: trimcheck.PhaseVerify,
			result: trimcheck.VerifyResult{
				Checksum:   sum,
				Expected:   pointer.To(sum),
				Head:       []byte{0x12, 0x34},
				ReportPath: report.DefaultPath,
			},
			contains: []string{"data:     12 34\n", "checksum match: discard appears not working", "remove trimcheck_report.txt"},
		},
		{
			name:  "not discarded",
			phase: trimcheck.PhaseVerify,
			result: trimcheck.VerifyResult{
				Checksum:  sum,
				Expected:  pointer.To(sum),
				Discarded: pointer.To(false),
			},
			contains: []string{"discard was not issued"},
		},
		{
			name:  "ones",
			phase: trimcheck.PhaseVerify,
			result: trimcheck.VerifyResult{
				Expected: pointer.To(sum),
				Head:     []byte{0xff, 0xff},
				Pattern:  trimcheck.PatternOnes,
			},
			contains: []string{"data:     ff ff\n", "discard appears working, the range reads back as 0xff bytes"},
		},
		{
			name:  "replaced",
			phase: trimcheck.PhaseVerify,
			result: trimcheck.VerifyResult{
				Expected: pointer.To(sum),
				Pattern:  trimcheck.PatternResidual,
			},
			contains: []string{"unrelated data"},
		},
		{
			name:  "direct",
			phase: trimcheck.PhaseDirect,
			result: trimcheck.VerifyResult{
				Partition: "/dev/sda1",
				Checksum:  sum,
			},
			contains: []string{"checksum: cbf43926\n"},
			excludes: []string{"expected:", "checksum match", "checksum mismatch", "remove"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			var sb strings.Builder

			render(&sb, trimcheck.Result{Phase: test.phase, Verify: &test.result})

			for _, s := range test.contains {
				assert.Contains(t, sb.String(), s)
			}

			for _, s := range test.excludes {
				assert.NotContains(t, sb.String(), s)
			}
		})
	}
}
