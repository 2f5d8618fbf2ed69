package models

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merch/pkg/platform/sentinel"
)

const (
	alice = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	bob   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestDeriveBinding(t *testing.T) {
	tests := []struct {
		code    string
		eventID uint64
	}{
		{"DEMO123", 183236},
		{"EVENT2025", 32322},
		{"TEST456", 210070},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			b := DeriveBinding(tt.code, "")
			assert.Equal(t, tt.eventID, b.EventID)
			assert.Equal(t, "ipfs://QmMockHash"+itoa(tt.eventID), b.TokenURI)
		})
	}

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		assert.Equal(t, DeriveBinding("DEMO123", ""), DeriveBinding("  demo123 ", ""))
	})

	t.Run("custom base", func(t *testing.T) {
		assert.Equal(t, "ipfs://bafy/183236", DeriveBinding("DEMO123", "ipfs://bafy/").TokenURI)
	})

	t.Run("range", func(t *testing.T) {
		for _, c := range DemoCodes {
			b := DeriveBinding(c, "")
			assert.GreaterOrEqual(t, b.EventID, uint64(1))
			assert.LessOrEqual(t, b.EventID, uint64(1_000_000))
		}
	})
}

func TestClaimCodeLifecycle(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	code := NewClaimCode("demo123", "", now)
	require.Equal(t, "DEMO123", code.Code)
	require.Equal(t, StatusUnused, code.Status)

	t.Run("unused is consumable by anyone", func(t *testing.T) {
		assert.NoError(t, code.CheckConsumable(alice, now))
	})

	code.ApplyReserve(alice, now.Add(time.Minute))

	t.Run("live reservation blocks others but not the holder", func(t *testing.T) {
		assert.ErrorIs(t, code.CheckConsumable(bob, now), sentinel.ErrReserved)
		assert.NoError(t, code.CheckConsumable(alice, now))
		// Address comparison ignores checksum casing.
		assert.NoError(t, code.CheckConsumable("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", now))
	})

	t.Run("expired reservation reads as unused", func(t *testing.T) {
		later := now.Add(time.Minute)
		assert.Equal(t, StatusUnused, code.EffectiveStatus(later))
		assert.NoError(t, code.CheckConsumable(bob, later))
	})

	code.ApplyConsume(alice, now)

	t.Run("used is terminal", func(t *testing.T) {
		assert.Equal(t, StatusUsed, code.EffectiveStatus(now.Add(time.Hour)))
		assert.ErrorIs(t, code.CheckConsumable(alice, now), sentinel.ErrAlreadyUsed)
		assert.Empty(t, code.ReservedBy)
		assert.Equal(t, alice, code.UsedBy)
	})
}

func itoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}
