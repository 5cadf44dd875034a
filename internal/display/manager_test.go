package display

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

func testConfig() common.DisplayConfig {
	return common.DisplayConfig{
		Enabled:     false, // no real Xvfb in unit tests
		PoolSize:    10,
		DisplayBase: 100,
		VNCBasePort: 5900,
		Resolution:  "1280x900x24",
	}
}

func TestAssignIsPureAndDeterministic(t *testing.T) {
	m := NewManager(testConfig(), nil)

	for _, id := range []int{0, 1, 9, 10, 11, 12345} {
		first := m.Assign(id)
		second := m.Assign(id)
		assert.Equal(t, first, second, "account %d", id)
	}
}

func TestAssignModuloPool(t *testing.T) {
	m := NewManager(testConfig(), nil)

	tests := []struct {
		accountID   int
		wantDisplay int
		wantPort    int
	}{
		{0, 100, 5900},
		{3, 103, 5903},
		{9, 109, 5909},
		{10, 100, 5900}, // wraps back onto slot 0
		{23, 103, 5903},
	}

	for _, tt := range tests {
		got := m.Assign(tt.accountID)
		assert.Equal(t, tt.wantDisplay, got.DisplayID, "account %d display", tt.accountID)
		assert.Equal(t, tt.wantPort, got.VNCPort, "account %d port", tt.accountID)
	}
}

func TestSameSlotAccountsShareAssignment(t *testing.T) {
	m := NewManager(testConfig(), nil)

	// Accounts 4 and 14 collide on slot 4 - accepted limitation, the mapping
	// itself must agree
	assert.Equal(t, m.Assign(4), m.Assign(14))
}

func TestEnsureRunningDisabledStillAssigns(t *testing.T) {
	m := NewManager(testConfig(), nil)

	got, err := m.EnsureRunning(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, m.Assign(7), got)
	assert.Equal(t, 1, m.ActiveAssignments())
}

func TestReleaseForgetsMappingOnly(t *testing.T) {
	m := NewManager(testConfig(), nil)

	_, err := m.EnsureRunning(context.Background(), 7)
	require.NoError(t, err)
	_, err = m.EnsureRunning(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 2, m.ActiveAssignments())

	m.Release(7)
	assert.Equal(t, 1, m.ActiveAssignments())

	// Releasing twice is harmless
	m.Release(7)
	assert.Equal(t, 1, m.ActiveAssignments())

	// The assignment function is unaffected by release
	assert.Equal(t, 100+7, m.Assign(7).DisplayID)
}
