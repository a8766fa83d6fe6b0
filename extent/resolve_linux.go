// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package extent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-trimcheck/internal/kv"
)

// Default locations of the kernel device namespaces.
const (
	DefaultSysFsRoot = "/sys"
	DefaultDevDir    = "/dev"
)

// Resolver maps files to their backing blockdevice.
//
// Zero value uses the default sysfs and /dev locations.
type Resolver struct {
	SysFsRoot string
	DevDir    string
}

// ResolveBlockDevice returns the path of the blockdevice backing the file with default settings.
func ResolveBlockDevice(path string) (string, error) {
	return Resolver{}.ResolveBlockDevice(path)
}

// Locate resolves the first extent of the file and its backing blockdevice.
func (r Resolver) Locate(path string) (Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrExtentQuery, err)
	}

	defer f.Close() //nolint:errcheck

	ext, err := firstExtent(f)
	if err != nil {
		return Location{}, err
	}

	var st unix.Stat_t

	if err = unix.Fstat(int(f.Fd()), &st); err != nil {
		return Location{}, fmt.Errorf("%w: fstat %q: %w", ErrDeviceResolve, path, err)
	}

	device, err := r.DeviceForDevNo(st.Dev)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Device: device,
		Extent: ext,
	}, nil
}

// ResolveBlockDevice returns the path of the blockdevice backing the file.
func (r Resolver) ResolveBlockDevice(path string) (string, error) {
	var st unix.Stat_t

	if err := unix.Stat(path, &st); err != nil {
		return "", fmt.Errorf("%w: stat %q: %w", ErrDeviceResolve, path, err)
	}

	return r.DeviceForDevNo(st.Dev)
}

// DeviceForDevNo resolves the device number to the block special file path via sysfs uevent.
func (r Resolver) DeviceForDevNo(devNo uint64) (string, error) {
	devID := strconv.FormatUint(uint64(unix.Major(devNo)), 10) + ":" + strconv.FormatUint(uint64(unix.Minor(devNo)), 10)

	ueventPath := filepath.Join(r.sysFsRoot(), "dev", "block", devID, "uevent")

	f, err := os.Open(ueventPath)
	if err != nil {
		return "", fmt.Errorf("%w: device %s: %w", ErrDeviceResolve, devID, err)
	}

	defer f.Close() //nolint:errcheck

	records, err := kv.Parse(f)
	if err != nil {
		return "", fmt.Errorf("%w: device %s: %w", ErrDeviceResolve, devID, err)
	}

	devName, ok := records.Lookup("DEVNAME")
	if !ok || devName == "" {
		return "", fmt.Errorf("%w: device %s: no DEVNAME in %q", ErrDeviceResolve, devID, ueventPath)
	}

	return filepath.Join(r.devDir(), devName), nil
}

func (r Resolver) sysFsRoot() string {
	if r.SysFsRoot != "" {
		return r.SysFsRoot
	}

	return DefaultSysFsRoot
}

func (r Resolver) devDir() string {
	if r.DevDir != "" {
		return r.DevDir
	}

	return DefaultDevDir
}
