package testutil

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Well-known development accounts. The keys are the public Hardhat/Anvil
// defaults and must never hold real funds.
var Wallets = struct {
	Alice    common.Address
	Bob      common.Address
	AliceKey string
	BobKey   string
}{
	Alice:    common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
	Bob:      common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
	AliceKey: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	BobKey:   "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
}

// IssuerKey is the development issuer key; its address is IssuerAddress.
const IssuerKey = "0x1234567890123456789012345678901234567890123456789012345678901234"

// IssuerAddress is derived from IssuerKey.
var IssuerAddress = common.HexToAddress("0x2e988A386a799F506693793c6A5AF6B54dfAaBfB")

// FixedTime is a deterministic clock reading for tests.
var FixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock returns a clock func pinned to t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// MutableClock is a test clock that can be advanced.
type MutableClock struct {
	now time.Time
}

// NewMutableClock starts the clock at t.
func NewMutableClock(t time.Time) *MutableClock {
	return &MutableClock{now: t}
}

// Now returns the current reading.
func (c *MutableClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *MutableClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
