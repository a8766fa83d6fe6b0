// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewFromPath opens the device read-only and returns a new Device.
func NewFromPath(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	return &Device{
		f:         f,
		ownedFile: true,
	}, nil
}

func (d *Device) clone() *Device {
	return &Device{
		f:         d.f,
		ownedFile: false,
		devNo:     d.devNo,
	}
}

func (d *Device) stat() (unix.Stat_t, error) {
	var st unix.Stat_t

	err := unix.Fstat(int(d.f.Fd()), &st)

	return st, err
}

// IsBlockDevice returns true if the underlying file is a block special file.
func (d *Device) IsBlockDevice() (bool, error) {
	st, err := d.stat()
	if err != nil {
		return false, err
	}

	return st.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

// GetSize returns blockdevice size in bytes.
//
// Regular files (disk images) report their length.
func (d *Device) GetSize() (uint64, error) {
	st, err := d.stat()
	if err != nil {
		return 0, err
	}

	if st.Mode&unix.S_IFMT == unix.S_IFREG {
		return uint64(st.Size), nil
	}

	var devsize uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno != 0 {
		return 0, errno
	}

	return devsize, nil
}

// GetSectorSize returns the logical sector size in bytes.
//
// Regular files (disk images) report DefaultBlockSize.
func (d *Device) GetSectorSize() (uint, error) {
	isBlock, err := d.IsBlockDevice()
	if err != nil {
		return 0, err
	}

	if !isBlock {
		return DefaultBlockSize, nil
	}

	size, err := unix.IoctlGetInt(int(d.f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, fmt.Errorf("BLKSSZGET %q: %w", d.f.Name(), err)
	}

	return uint(size), nil
}

// GetDevNo returns the device number of the blockdevice.
func (d *Device) GetDevNo() (uint64, error) {
	if d.devNo != 0 {
		return d.devNo, nil
	}

	st, err := d.stat()
	if err != nil {
		return 0, err
	}

	d.devNo = st.Rdev

	return d.devNo, nil
}

func (d *Device) sysFsPath() (string, error) {
	devNo, err := d.GetDevNo()
	if err != nil {
		return "", err
	}

	if devNo == 0 {
		return "", fmt.Errorf("%q is not a blockdevice", d.f.Name())
	}

	return fmt.Sprintf("/sys/dev/block/%d:%d", unix.Major(devNo), unix.Minor(devNo)), nil
}

// IsWholeDisk returns true if the blockdevice is a whole disk.
func (d *Device) IsWholeDisk() (bool, error) {
	sysFsPath, err := d.sysFsPath()
	if err != nil {
		return false, err
	}

	parent, err := parentDiskName(sysFsPath)

	return parent == "", err
}

// GetWholeDisk returns the whole disk for the blockdevice.
//
// If the blockdevice is a whole disk, it returns itself.
// The returned block device should be closed.
func (d *Device) GetWholeDisk() (*Device, error) {
	sysFsPath, err := d.sysFsPath()
	if err != nil {
		return nil, err
	}

	parent, err := parentDiskName(sysFsPath)
	if err != nil {
		return nil, err
	}

	if parent == "" {
		return d.clone(), nil
	}

	return NewFromPath(filepath.Join("/dev", parent))
}

// parentDiskName returns the kernel name of the disk holding the device at sysFsPath.
//
// Empty name is returned for whole disks. Device-mapper partitions (kpartx, `part*-` uuids)
// resolve to their first slave.
func parentDiskName(sysFsPath string) (string, error) {
	if _, err := os.Stat(filepath.Join(sysFsPath, "partition")); err == nil {
		target, err := os.Readlink(sysFsPath)
		if err != nil {
			return "", err
		}

		return filepath.Base(filepath.Dir(target)), nil
	}

	dmUUID, err := os.ReadFile(filepath.Join(sysFsPath, "dm", "uuid"))
	if err != nil || !bytes.HasPrefix(dmUUID, []byte("part")) {
		return "", nil //nolint:nilerr
	}

	slaves, err := os.ReadDir(filepath.Join(sysFsPath, "slaves"))
	if err != nil {
		return "", err
	}

	if len(slaves) == 0 {
		return "", fmt.Errorf("device-mapper partition %q has no slaves", sysFsPath)
	}

	return slaves[0].Name(), nil
}

// GetDiscardMaxBytes returns the maximum discard request size advertised by the device queue.
//
// Zero means the device does not support discard. Partitions report the value of
// their whole disk.
func (d *Device) GetDiscardMaxBytes() (uint64, error) {
	wholeDisk, err := d.GetWholeDisk()
	if err != nil {
		return 0, err
	}

	defer wholeDisk.Close() //nolint:errcheck

	sysFsPath, err := wholeDisk.sysFsPath()
	if err != nil {
		return 0, err
	}

	contents := readSysFsFile(filepath.Join(sysFsPath, "queue", "discard_max_bytes"))
	if contents == "" {
		return 0, fmt.Errorf("discard limits are not available for %q", wholeDisk.Name())
	}

	return strconv.ParseUint(contents, 10, 64)
}

func readSysFsFile(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return string(bytes.TrimSpace(contents))
}
