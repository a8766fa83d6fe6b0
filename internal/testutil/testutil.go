// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package testutil contains common test code for loop-backed filesystems.
package testutil

import (
	"errors"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/freddierice/go-losetup/v2"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// SkipIfNotRoot skips tests which need to attach loop devices and mount filesystems.
func SkipIfNotRoot(t *testing.T) {
	t.Helper()

	if os.Geteuid() != 0 {
		t.Skip("skipping test; must be root")
	}
}

// Filesystem is a loop-backed mounted filesystem.
type Filesystem struct {
	Image      string
	Device     string
	Mountpoint string
}

// MountExt4 creates a sparse image of the given size, attaches it to a loop device,
// formats it as ext4 and mounts it with discard support.
//
// Everything is torn down on test cleanup.
func MountExt4(t *testing.T, size int64) Filesystem {
	t.Helper()

	tmpDir := t.TempDir()

	rawImage := filepath.Join(tmpDir, "image.raw")

	f, err := os.Create(rawImage)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	loDev := AttachLoop(t, rawImage, false)

	t.Cleanup(func() {
		assert.NoError(t, loDev.Detach())
	})

	_, err = cmd.Run("mkfs.ext4", "-q", "-F", "-E", "nodiscard", loDev.Path())
	require.NoError(t, err)

	mountpoint := filepath.Join(tmpDir, "mnt")
	require.NoError(t, os.Mkdir(mountpoint, 0o755))

	_, err = cmd.Run("mount", "-t", "ext4", loDev.Path(), mountpoint)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, err := cmd.Run("umount", mountpoint)
		assert.NoError(t, err)
	})

	return Filesystem{
		Image:      rawImage,
		Device:     loDev.Path(),
		Mountpoint: mountpoint,
	}
}

// AttachLoop attaches the image to a free loop device, retrying on EBUSY.
func AttachLoop(t *testing.T, rawImage string, readonly bool) losetup.Device {
	t.Helper()

	for range 10 {
		loDev, err := losetup.Attach(rawImage, 0, readonly)
		if err != nil {
			if errors.Is(err, unix.EBUSY) {
				spraySleep := max(randv2.ExpFloat64(), 2.0)

				t.Logf("retrying after %v seconds", spraySleep)

				time.Sleep(time.Duration(spraySleep * float64(time.Second)))

				continue
			}
		}

		require.NoError(t, err)

		return loDev
	}

	t.Fatal("failed to attach loop device") //nolint:revive

	panic("unreachable")
}
