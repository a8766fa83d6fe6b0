// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/go-trimcheck/trimcheck"
)

func render(w io.Writer, res trimcheck.Result) {
	switch res.Phase {
	case trimcheck.PhaseWrite:
		renderWrite(w, res.Write)
	case trimcheck.PhaseVerify, trimcheck.PhaseDirect:
		renderVerify(w, res.Phase, res.Verify)
	}
}

func renderWrite(w io.Writer, res *trimcheck.WriteResult) {
	r := res.Report

	fmt.Fprintf(w, "device:   %s\n", r.Partition)
	fmt.Fprintf(w, "offset:   %d\n", r.Offset)
	fmt.Fprintf(w, "size:     %s\n", humanize.IBytes(uint64(r.Size)))
	fmt.Fprintf(w, "checksum: %s\n", r.Checksum)

	if res.FileHead != nil {
		fmt.Fprintf(w, "file:     %s\n", hexHead(res.FileHead))
		fmt.Fprintf(w, "device:   %s\n", hexHead(res.RawHead))
	}

	if res.Discard != nil {
		fmt.Fprintf(w, "discarded %s on %s\n", humanize.IBytes(res.Discard.Discarded), res.Discard.Mountpoint)
	} else {
		fmt.Fprintln(w, "discard skipped")
	}

	fmt.Fprintf(w, "report saved to %s, run again to verify\n", res.ReportPath)
}

func renderVerify(w io.Writer, phase trimcheck.Phase, res *trimcheck.VerifyResult) {
	fmt.Fprintf(w, "device:   %s\n", res.Partition)
	fmt.Fprintf(w, "offset:   %d\n", res.Offset)
	fmt.Fprintf(w, "size:     %s\n", humanize.IBytes(uint64(res.Size)))
	fmt.Fprintf(w, "checksum: %s\n", res.Checksum)

	if res.Expected != nil {
		fmt.Fprintf(w, "expected: %s\n", *res.Expected)
	}

	fmt.Fprintf(w, "data:     %s\n", hexHead(res.Head))

	if msg := verdictMessage(res); msg != "" {
		fmt.Fprintln(w, msg)
	}

	if phase == trimcheck.PhaseVerify {
		fmt.Fprintf(w, "remove %s before running the write phase again\n", res.ReportPath)
	}
}

func verdictMessage(res *trimcheck.VerifyResult) string {
	switch res.Verdict() {
	case trimcheck.VerdictIneffective:
		return "checksum match: discard appears not working, the original data is still on the device"
	case trimcheck.VerdictNotDiscarded:
		return "checksum match: discard was not issued when the probe was written"
	case trimcheck.VerdictEffective:
		return fmt.Sprintf("checksum mismatch: discard appears working, the range reads back as %s bytes", padName(res.Pattern))
	case trimcheck.VerdictReplaced:
		return "checksum mismatch: discard may be working, but the range holds unrelated data, which suggests the blocks were reused rather than erased"
	case trimcheck.VerdictUnknown:
		fallthrough
	default:
		return ""
	}
}

func padName(p trimcheck.Pattern) string {
	if p == trimcheck.PatternOnes {
		return "0xff"
	}

	return "0x00"
}

func hexHead(buf []byte) string {
	return strings.Join(xslices.Map(buf, func(b byte) string {
		return fmt.Sprintf("%02x", b)
	}), " ")
}
