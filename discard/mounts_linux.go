// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package discard

import (
	"fmt"
	"os"

	"github.com/moby/sys/mountinfo"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// FindMountpoint looks up the device in the live mount table.
func FindMountpoint(device string) (string, error) {
	return New().FindMountpoint(device)
}

// FindMountpoint returns the first mountpoint of the device.
//
// Mount table entries match either by source path or, if the device path is a
// block special file, by device number.
func (d *Discarder) FindMountpoint(device string) (string, error) {
	m := newMatcher(device)

	var (
		mounts []*mountinfo.Info
		err    error
	)

	if d.options.MountInfoPath == "" {
		mounts, err = mountinfo.GetMounts(m.filter)
	} else {
		var f *os.File

		f, err = os.Open(d.options.MountInfoPath)
		if err != nil {
			return "", fmt.Errorf("failed to read mount table: %w", err)
		}

		defer f.Close() //nolint:errcheck

		mounts, err = mountinfo.GetMountsFromReader(f, m.filter)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read mount table: %w", err)
	}

	if len(mounts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNotMounted, device)
	}

	d.options.Logger.Debug("found mountpoint",
		zap.String("device", device),
		zap.String("mountpoint", mounts[0].Mountpoint),
		zap.String("fstype", mounts[0].FSType),
	)

	return mounts[0].Mountpoint, nil
}

type matcher struct {
	source string

	major, minor uint32
	hasDevNo     bool
}

func newMatcher(device string) matcher {
	m := matcher{source: device}

	var st unix.Stat_t

	if err := unix.Stat(device, &st); err == nil && st.Mode&unix.S_IFMT == unix.S_IFBLK {
		m.major, m.minor = unix.Major(st.Rdev), unix.Minor(st.Rdev)
		m.hasDevNo = true
	}

	return m
}

func (m matcher) filter(info *mountinfo.Info) (skip, stop bool) {
	if info.Source == m.source {
		return false, true
	}

	if m.hasDevNo && info.Major == int(m.major) && info.Minor == int(m.minor) {
		return false, true
	}

	return true, false
}
