// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck

import (
	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/discard"
	"github.com/siderolabs/go-trimcheck/extent"
	"github.com/siderolabs/go-trimcheck/report"
)

// Phase of the run.
type Phase int

// Phases.
const (
	PhaseWrite Phase = iota
	PhaseVerify
	PhaseDirect
)

func (p Phase) String() string {
	switch p {
	case PhaseWrite:
		return "write"
	case PhaseVerify:
		return "verify"
	case PhaseDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Result of the run.
//
// Exactly one of Write and Verify is set depending on Phase.
type Result struct {
	Phase Phase

	Write  *WriteResult
	Verify *VerifyResult
}

// WriteResult is the outcome of the write phase.
type WriteResult struct { //nolint:govet
	// ProbeFile is the path of the (now deleted) probe file.
	ProbeFile string
	// Location as resolved from the probe file.
	Location extent.Location
	// Report as persisted.
	Report     report.Report
	ReportPath string

	// Discard is nil if the discard step was skipped.
	Discard *discard.Result

	// FileHead and RawHead are the leading bytes of the probe as read through the
	// filesystem and from the device, only in verbose mode.
	FileHead []byte
	RawHead  []byte
}

// Pattern classifies the contents of a re-read buffer.
type Pattern int

// Patterns.
const (
	// PatternResidual is any data other than uniform padding.
	PatternResidual Pattern = iota
	// PatternZero is all 0x00 bytes.
	PatternZero
	// PatternOnes is all 0xff bytes.
	PatternOnes
)

func (p Pattern) String() string {
	switch p {
	case PatternZero:
		return "zero"
	case PatternOnes:
		return "ones"
	case PatternResidual:
		return "residual"
	default:
		return "unknown"
	}
}

// Padded is true for the patterns devices use for discarded blocks.
func (p Pattern) Padded() bool {
	return p == PatternZero || p == PatternOnes
}

// Classify returns the pattern of the buffer.
func Classify(buf []byte) Pattern {
	if len(buf) == 0 {
		return PatternResidual
	}

	first := buf[0]
	if first != 0x00 && first != 0xff {
		return PatternResidual
	}

	for _, b := range buf {
		if b != first {
			return PatternResidual
		}
	}

	if first == 0x00 {
		return PatternZero
	}

	return PatternOnes
}

// Verdict is the interpretation of the verify phase.
type Verdict int

// Verdicts.
const (
	// VerdictUnknown means there was nothing to compare against.
	VerdictUnknown Verdict = iota
	// VerdictIneffective means the original data is still on the media.
	VerdictIneffective
	// VerdictNotDiscarded means the original data is still there, but discard was never issued.
	VerdictNotDiscarded
	// VerdictEffective means the data changed to a uniform pad pattern.
	VerdictEffective
	// VerdictReplaced means the data changed to unrelated contents.
	VerdictReplaced
)

func (v Verdict) String() string {
	switch v {
	case VerdictUnknown:
		return "unknown"
	case VerdictIneffective:
		return "ineffective"
	case VerdictNotDiscarded:
		return "not discarded"
	case VerdictEffective:
		return "effective"
	case VerdictReplaced:
		return "replaced"
	default:
		return "invalid"
	}
}

// VerifyResult is the outcome of the verify phase or the direct mode.
type VerifyResult struct { //nolint:govet
	Partition string
	Offset    uint64
	Size      int

	// Checksum of the data read from the device.
	Checksum checksum.Fingerprint
	// Expected checksum, nil in direct mode without an expectation.
	Expected *checksum.Fingerprint
	// Discarded as recorded in the report, nil if unknown.
	Discarded *bool

	// Head is the leading bytes of the data read from the device.
	Head    []byte
	Pattern Pattern

	// ReportPath is empty in direct mode.
	ReportPath string
}

// Match is true if the data on the device still matches the expected checksum.
func (r *VerifyResult) Match() bool {
	return r.Expected != nil && *r.Expected == r.Checksum
}

// Verdict interprets the comparison.
func (r *VerifyResult) Verdict() Verdict {
	switch {
	case r.Expected == nil:
		return VerdictUnknown
	case r.Match() && r.Discarded != nil && !*r.Discarded:
		return VerdictNotDiscarded
	case r.Match():
		return VerdictIneffective
	case r.Pattern.Padded():
		return VerdictEffective
	default:
		return VerdictReplaced
	}
}

func head(buf []byte) []byte {
	return append([]byte(nil), buf[:min(len(buf), HeadSize)]...)
}
