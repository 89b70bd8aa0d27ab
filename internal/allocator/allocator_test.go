// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package allocator

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeIPSkipsNetworkAndBroadcast(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/29")
	ip, err := FreeIP(prefix, nil, "prod")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip.String())
}

func TestFreeIPSkipsUsed(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/29")
	used := []netip.Addr{netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")}
	ip, err := FreeIP(prefix, used, "prod")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", ip.String())
}

func TestFreeIPExhausted(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/30")
	used := []netip.Addr{netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")}
	_, err := FreeIP(prefix, used, "prod")
	require.Error(t, err)
	var exhausted *NoUnusedIPsError
	assert.ErrorAs(t, err, &exhausted)
}

func TestFreePort(t *testing.T) {
	p, err := FreePort(50000, 50003, []uint32{50000, 50001}, "if0")
	require.NoError(t, err)
	assert.EqualValues(t, 50002, p)
}

func TestFreePortExhausted(t *testing.T) {
	_, err := FreePort(50000, 50002, []uint32{50000, 50001}, "if0")
	require.Error(t, err)
	var exhausted *NoUnusedPortsError
	assert.ErrorAs(t, err, &exhausted)
}

func TestFreePortUnsetRange(t *testing.T) {
	_, err := FreePort(0, 0, nil, "if0")
	require.Error(t, err)
}
