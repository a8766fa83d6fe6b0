// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/report"
)

// Verify runs the verify phase against the saved report.
//
// A checksum mismatch is not an error, see VerifyResult.Verdict.
func (p *Prober) Verify(ctx context.Context) (*VerifyResult, error) {
	r, err := report.Load(p.cfg.ReportPath)
	if err != nil {
		return nil, err
	}

	if r.Size > MaxProbeSize {
		return nil, fmt.Errorf("%w: size %d exceeds %d", report.ErrFormat, r.Size, MaxProbeSize)
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.check(r.Partition, r.Offset, r.Size, &r.Checksum)
	if err != nil {
		return nil, err
	}

	res.Discarded = r.Discarded
	res.ReportPath = p.cfg.ReportPath

	p.options.Logger.Info("verified",
		zap.Stringer("checksum", res.Checksum),
		zap.Stringer("expected", r.Checksum),
		zap.Stringer("verdict", res.Verdict()),
	)

	return res, nil
}

// Direct computes the checksum of the configured partition range, without the report.
func (p *Prober) Direct(ctx context.Context) (*VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.check(p.cfg.Partition, p.cfg.Offset, p.cfg.Size, p.cfg.Expected)
	if err != nil {
		return nil, err
	}

	p.options.Logger.Info("checksum computed",
		zap.String("device", res.Partition),
		zap.Uint64("offset", res.Offset),
		zap.Stringer("checksum", res.Checksum),
	)

	return res, nil
}

func (p *Prober) check(device string, physical uint64, size int, expected *checksum.Fingerprint) (*VerifyResult, error) {
	offset, err := toOffset(physical)
	if err != nil {
		return nil, err
	}

	buf, err := p.options.Reader.ReadPhysical(device, offset, size)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Partition: device,
		Offset:    physical,
		Size:      size,
		Checksum:  checksum.Compute(buf),
		Expected:  expected,
		Head:      head(buf),
		Pattern:   Classify(buf),
	}, nil
}
