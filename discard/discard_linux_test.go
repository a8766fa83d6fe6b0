// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package discard_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-trimcheck/discard"
	"github.com/siderolabs/go-trimcheck/internal/testutil"
)

const MiB = 1024 * 1024

var fakeMountInfo = strings.TrimSpace(`
22 1 8:2 / / rw,relatime shared:1 - ext4 /dev/sdz2 rw,errors=remount-ro
25 22 0:23 / /sys rw,nosuid,nodev,noexec,relatime shared:7 - sysfs sysfs rw
46 22 0:44 / /tmp rw,nosuid,nodev shared:31 - tmpfs tmpfs rw,size=8G
47 22 259:3 / /data rw,noatime shared:30 - xfs /dev/nvmez0n1p3 rw,attr2,inode64
48 22 259:3 /srv /srv rw,noatime shared:30 - xfs /dev/nvmez0n1p3 rw,attr2,inode64
`) + "\n"

func writeMountInfo(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mountinfo")
	require.NoError(t, os.WriteFile(path, []byte(fakeMountInfo), 0o644))

	return path
}

func TestFindMountpoint(t *testing.T) {
	discarder := discard.New(
		discard.WithLogger(zaptest.NewLogger(t)),
		discard.WithMountInfoPath(writeMountInfo(t)),
	)

	for _, test := range []struct {
		device   string
		expected string
	}{
		{
			device:   "/dev/sdz2",
			expected: "/",
		},
		{
			device:   "/dev/nvmez0n1p3",
			expected: "/data",
		},
	} {
		t.Run(test.device, func(t *testing.T) {
			mountpoint, err := discarder.FindMountpoint(test.device)
			require.NoError(t, err)

			assert.Equal(t, test.expected, mountpoint)
		})
	}

	t.Run("not mounted", func(t *testing.T) {
		_, err := discarder.FindMountpoint("/dev/sdz3")
		require.ErrorIs(t, err, discard.ErrNotMounted)

		_, err = discarder.Discard("/dev/sdz3")
		require.ErrorIs(t, err, discard.ErrNotMounted)
	})

	t.Run("no mount table", func(t *testing.T) {
		_, err := discard.New(discard.WithMountInfoPath(filepath.Join(t.TempDir(), "nonexistent"))).FindMountpoint("/dev/sdz2")
		require.Error(t, err)
		assert.NotErrorIs(t, err, discard.ErrNotMounted)
	})
}

func TestTrimErrors(t *testing.T) {
	_, err := discard.Trim(filepath.Join(t.TempDir(), "nonexistent"))
	require.ErrorIs(t, err, discard.ErrDiscard)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDiscardLoopDevice(t *testing.T) {
	testutil.SkipIfNotRoot(t)

	mnt := testutil.MountExt4(t, 256*MiB)

	mountpoint, err := discard.FindMountpoint(mnt.Device)
	require.NoError(t, err)
	assert.Equal(t, mnt.Mountpoint, mountpoint)

	result, err := discard.New(discard.WithLogger(zaptest.NewLogger(t))).Discard(mnt.Device)
	require.NoError(t, err)

	assert.Equal(t, mnt.Mountpoint, result.Mountpoint)

	t.Logf("discarded %d bytes", result.Discarded)
}
