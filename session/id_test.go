package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameIDRoundTrip(t *testing.T) {
	for _, iid := range []uint64{0, 1, 42, 1<<32 - 1, 1 << 32, 1<<40 - 1} {
		for _, sid := range []int{0, 1, 7, 1<<13 - 1} {
			id := PackFrameID(iid, sid)
			gotIID, gotSID := UnpackFrameID(id)
			assert.Equal(t, iid, gotIID)
			assert.Equal(t, sid, gotSID)
		}
	}
}

func TestFrameIDIs53BitSafe(t *testing.T) {
	id := PackFrameID(1<<40-1, 1<<13-1)
	assert.Less(t, id, int64(1)<<53)
	assert.Greater(t, id, int64(0))
}

func TestCompositeRoundTrip(t *testing.T) {
	for _, ns := range []uint32{0, 1, 1<<32 - 1} {
		for _, raw := range []uint64{0, 5, 1<<32 - 1} {
			id := PackComposite(ns, raw)
			gotNS, gotRaw := UnpackComposite(id)
			assert.Equal(t, ns, gotNS)
			assert.Equal(t, raw, gotRaw)
		}
	}
}

func TestCompositeZeroNamespaceIsIdentity(t *testing.T) {
	assert.Equal(t, uint64(7), PackComposite(0, 7))
}
