// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package extent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/go-trimcheck/extent"
)

func TestFlags(t *testing.T) {
	assert.Equal(t, "", extent.Flags(0).String())
	assert.Equal(t, "last", extent.FlagLast.String())
	assert.Equal(t, "last,unknown,delalloc", (extent.FlagLast | extent.FlagUnknown | extent.FlagDelalloc).String())

	assert.False(t, extent.Flags(0).Unreliable())
	assert.False(t, (extent.FlagLast | extent.FlagUnwritten | extent.FlagShared).Unreliable())
	assert.True(t, (extent.FlagLast | extent.FlagDelalloc).Unreliable())
	assert.True(t, extent.FlagUnknown.Unreliable())
	assert.True(t, extent.FlagDataInline.Unreliable())
}
