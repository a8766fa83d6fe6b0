// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck_test

import (
	"bytes"
	"testing"

	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/trimcheck"
)

func TestClassify(t *testing.T) {
	for _, test := range []struct {
		name     string
		buf      []byte
		expected trimcheck.Pattern
	}{
		{
			name:     "empty",
			expected: trimcheck.PatternResidual,
		},
		{
			name:     "zero",
			buf:      make([]byte, 4096),
			expected: trimcheck.PatternZero,
		},
		{
			name:     "ones",
			buf:      bytes.Repeat([]byte{0xff}, 4096),
			expected: trimcheck.PatternOnes,
		},
		{
			name:     "zero with trailing data",
			buf:      append(make([]byte, 4095), 1),
			expected: trimcheck.PatternResidual,
		},
		{
			name:     "mixed padding",
			buf:      append(bytes.Repeat([]byte{0xff}, 16), make([]byte, 16)...),
			expected: trimcheck.PatternResidual,
		},
		{
			name:     "text",
			buf:      []byte("hello"),
			expected: trimcheck.PatternResidual,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, trimcheck.Classify(test.buf))
		})
	}
}

func TestVerdict(t *testing.T) {
	const sum checksum.Fingerprint = 0xcbf43926

	for _, test := range []struct {
		name     string
		result   trimcheck.VerifyResult
		expected trimcheck.Verdict
	}{
		{
			name:     "no expectation",
			result:   trimcheck.VerifyResult{Checksum: sum},
			expected: trimcheck.VerdictUnknown,
		},
		{
			name:     "match",
			result:   trimcheck.VerifyResult{Checksum: sum, Expected: pointer.To(sum)},
			expected: trimcheck.VerdictIneffective,
		},
		{
			name:     "match after discard",
			result:   trimcheck.VerifyResult{Checksum: sum, Expected: pointer.To(sum), Discarded: pointer.To(true)},
			expected: trimcheck.VerdictIneffective,
		},
		{
			name:     "match without discard",
			result:   trimcheck.VerifyResult{Checksum: sum, Expected: pointer.To(sum), Discarded: pointer.To(false)},
			expected: trimcheck.VerdictNotDiscarded,
		},
		{
			name:     "zeroed",
			result:   trimcheck.VerifyResult{Expected: pointer.To(sum), Pattern: trimcheck.PatternZero},
			expected: trimcheck.VerdictEffective,
		},
		{
			name:     "ones",
			result:   trimcheck.VerifyResult{Expected: pointer.To(sum), Pattern: trimcheck.PatternOnes},
			expected: trimcheck.VerdictEffective,
		},
		{
			name:     "other data",
			result:   trimcheck.VerifyResult{Expected: pointer.To(sum), Pattern: trimcheck.PatternResidual},
			expected: trimcheck.VerdictReplaced,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.result.Verdict())
		})
	}
}
