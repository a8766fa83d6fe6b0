// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package trimcheck

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/block"
	"github.com/siderolabs/go-trimcheck/checksum"
	"github.com/siderolabs/go-trimcheck/discard"
	"github.com/siderolabs/go-trimcheck/extent"
	"github.com/siderolabs/go-trimcheck/internal/ioutil"
	"github.com/siderolabs/go-trimcheck/report"
)

// Write runs the write phase.
//
// On any error the probe file is removed and no report is written.
func (p *Prober) Write(ctx context.Context) (_ *WriteResult, err error) {
	logger := p.options.Logger

	defer func() {
		if err != nil {
			err = multierr.Append(err, p.Abort())
		}
	}()

	path := p.cfg.FileName

	if err = p.writeProbe(path); err != nil {
		return nil, err
	}

	logger.Info("probe file written",
		zap.String("path", path),
		zap.String("size", humanize.IBytes(uint64(p.cfg.Size))),
	)

	if p.cfg.SettleWait > 0 {
		logger.Info("waiting for the data to settle", zap.Duration("wait", p.cfg.SettleWait))

		if err = p.options.Sleep(ctx, p.cfg.SettleWait); err != nil {
			return nil, err
		}
	}

	loc, err := p.options.Locator.Locate(path)
	if err != nil {
		return nil, err
	}

	if err = validateLocation(loc); err != nil {
		return nil, err
	}

	logger.Info("probe file located",
		zap.String("device", loc.Device),
		zap.Uint64("offset", loc.Physical),
		zap.Uint64("extent_length", loc.Length),
		zap.Stringer("flags", loc.Flags),
	)

	if loc.Length < uint64(p.cfg.Size) {
		logger.Warn("first extent is shorter than the probe, the data on the device is fragmented",
			zap.Uint64("extent_length", loc.Length),
			zap.Int("size", p.cfg.Size),
		)
	}

	device := loc.Device

	if p.cfg.Partition != "" && p.cfg.Partition != device {
		logger.Warn("overriding the resolved device", zap.String("resolved", device), zap.String("device", p.cfg.Partition))

		device = p.cfg.Partition
	}

	offset, err := toOffset(loc.Physical)
	if err != nil {
		return nil, err
	}

	p.inspectDevice(device, offset)

	fileData, err := p.readProbe(path)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	rawData, err := p.options.Reader.ReadPhysical(device, offset, p.cfg.Size)
	if err != nil {
		return nil, err
	}

	fileSum, rawSum := checksum.Compute(fileData), checksum.Compute(rawData)

	logger.Debug("self-check", zap.Stringer("file", fileSum), zap.Stringer("device", rawSum))

	if fileSum != rawSum {
		return nil, fmt.Errorf("%w: file %s, device %q at offset %d %s", ErrChecksumSelfCheck, fileSum, device, offset, rawSum)
	}

	res := &WriteResult{
		ProbeFile:  path,
		Location:   loc,
		ReportPath: p.cfg.ReportPath,
		Report: report.Report{
			Partition: device,
			Offset:    loc.Physical,
			Size:      p.cfg.Size,
			Checksum:  fileSum,
			Discarded: pointer.To(!p.cfg.SkipDiscard),
		},
	}

	if p.cfg.Verbose {
		res.FileHead = head(fileData)
		res.RawHead = head(rawData)
	}

	if err = p.Abort(); err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if p.cfg.SkipDiscard {
		logger.Info("discard is disabled")
	} else {
		var discarded discard.Result

		discarded, err = p.options.Discarder.Discard(device)
		if err != nil {
			return nil, err
		}

		logger.Info("discard issued",
			zap.String("mountpoint", discarded.Mountpoint),
			zap.String("discarded", humanize.IBytes(discarded.Discarded)),
		)

		res.Discard = &discarded
	}

	if err = report.Save(p.cfg.ReportPath, res.Report); err != nil {
		return nil, err
	}

	logger.Info("report saved", zap.String("path", p.cfg.ReportPath))

	return res, nil
}

// writeProbe creates the probe file with random contents and flushes it to stable storage.
func (p *Prober) writeProbe(path string) error {
	f, err := p.createProbe(path)
	if err != nil {
		return err
	}

	if _, err = io.CopyN(f, p.options.Random, int64(p.cfg.Size)); err != nil {
		f.Close() //nolint:errcheck

		return fmt.Errorf("failed to write probe file: %w", err)
	}

	if err = f.Sync(); err != nil {
		f.Close() //nolint:errcheck

		return fmt.Errorf("failed to sync probe file: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close probe file: %w", err)
	}

	if err = syncDir(filepath.Dir(path)); err != nil {
		return err
	}

	unix.Sync()

	return nil
}

func (p *Prober) readProbe(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open probe file: %w", err)
	}

	defer f.Close() //nolint:errcheck

	buf := make([]byte, p.cfg.Size)

	if _, err = ioutil.ReadFullAt(f, buf, 0); err != nil {
		return nil, fmt.Errorf("failed to read probe file: %w", err)
	}

	return buf, nil
}

// inspectDevice logs what is known about the device backing the probe.
//
// Nothing here is fatal: the self-check read decides whether the location is usable.
func (p *Prober) inspectDevice(device string, offset int64) {
	logger := p.options.Logger.With(zap.String("device", device))

	dev, err := block.NewFromPath(device)
	if err != nil {
		logger.Debug("failed to open device", zap.Error(err))

		return
	}

	defer dev.Close() //nolint:errcheck

	isBlock, err := dev.IsBlockDevice()
	if err != nil {
		logger.Debug("failed to stat device", zap.Error(err))

		return
	}

	if !isBlock {
		logger.Warn("device is not a block special file, the data is read through the page cache of a regular file")

		return
	}

	if sectorSize, err := dev.GetSectorSize(); err == nil && sectorSize > 0 && offset%int64(sectorSize) != 0 {
		logger.Warn("probe offset is not aligned to the device sector size",
			zap.Int64("offset", offset),
			zap.Uint("sector_size", sectorSize),
		)
	}

	if isWholeDisk, err := dev.IsWholeDisk(); err == nil {
		logger.Debug("device topology", zap.Bool("whole_disk", isWholeDisk))
	}

	maxBytes, err := dev.GetDiscardMaxBytes()

	switch {
	case err != nil:
		logger.Debug("discard support unknown", zap.Error(err))
	case maxBytes == 0:
		logger.Warn("device doesn't advertise discard support")
	default:
		logger.Debug("device supports discard", zap.String("discard_max", humanize.IBytes(maxBytes)))
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open probe directory: %w", err)
	}

	defer d.Close() //nolint:errcheck

	if err = d.Sync(); err != nil {
		return fmt.Errorf("failed to sync probe directory: %w", err)
	}

	return nil
}

// validateLocation rejects locations which can't be read back from the device.
//
// Physical offset zero is what filesystems report for extents without a stable
// physical address (inline data, delayed allocation).
func validateLocation(loc extent.Location) error {
	switch {
	case loc.Device == "":
		return fmt.Errorf("%w: no backing device", extent.ErrDeviceResolve)
	case loc.Physical == 0:
		return fmt.Errorf("%w: physical offset is zero", extent.ErrDeviceResolve)
	case loc.Flags.Unreliable():
		return fmt.Errorf("%w: extent location is not reliable (%s)", extent.ErrDeviceResolve, loc.Flags)
	}

	return nil
}

func toOffset(physical uint64) (int64, error) {
	if physical > math.MaxInt64 {
		return 0, fmt.Errorf("%w: offset %d overflows", block.ErrRead, physical)
	}

	return int64(physical), nil
}
