package chain

import (
	"context"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"merch/internal/claim/models"
	"merch/internal/claim/signer"
)

// treasuryShare is the treasury's cut of the upgrade fee in basis points (37.5%).
// The organizer receives the remainder.
const treasuryShare = 3750

type mintKey struct {
	owner   common.Address
	eventID uint64
}

// SimulatedLedger enforces the contract rules in process: signatures must
// recover to the registered issuer, each (recipient, eventId) mints once, and
// each SBT backs at most one companion.
type SimulatedLedger struct {
	mu sync.Mutex

	issuer   common.Address
	treasury common.Address
	fee      *big.Int
	latency  time.Duration

	nextToken   uint64
	nextPremium uint64
	txCount     uint64
	owners      map[uint64]common.Address
	byEvent     map[mintKey]uint64
	balances    map[common.Address]int64
	companions  map[uint64]uint64
	payouts     map[common.Address]*big.Int
}

type SimulatedOption func(*SimulatedLedger)

// WithUpgradeFee overrides the companion fee.
func WithUpgradeFee(fee *big.Int) SimulatedOption {
	return func(l *SimulatedLedger) {
		if fee != nil {
			l.fee = new(big.Int).Set(fee)
		}
	}
}

// WithTreasury sets the address receiving the treasury share.
func WithTreasury(addr common.Address) SimulatedOption {
	return func(l *SimulatedLedger) {
		l.treasury = addr
	}
}

// WithLatency delays every write, as block confirmation would.
func WithLatency(d time.Duration) SimulatedOption {
	return func(l *SimulatedLedger) {
		l.latency = d
	}
}

// NewSimulatedLedger trusts signatures from issuer.
func NewSimulatedLedger(issuer common.Address, opts ...SimulatedOption) *SimulatedLedger {
	l := &SimulatedLedger{
		issuer:      issuer,
		fee:         new(big.Int).Set(DefaultUpgradeFee),
		nextToken:   1,
		nextPremium: 1,
		owners:      make(map[uint64]common.Address),
		byEvent:     make(map[mintKey]uint64),
		balances:    make(map[common.Address]int64),
		companions:  make(map[uint64]uint64),
		payouts:     make(map[common.Address]*big.Int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *SimulatedLedger) confirm(ctx context.Context) error {
	if l.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(l.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *SimulatedLedger) SubmitMint(ctx context.Context, auth *models.MintAuthorization) (*MintReceipt, error) {
	if err := l.confirm(ctx); err != nil {
		return nil, Classify(err)
	}
	digest, err := signer.BuildDigest(auth.Recipient, auth.EventIDBig(), auth.TokenURI)
	if err != nil {
		return nil, Classify(&RevertError{Name: "InvalidSignature"})
	}
	recovered, err := signer.Recover(digest, auth.Signature)
	if err != nil || recovered != l.issuer {
		return nil, Classify(&RevertError{Name: "InvalidSignature"})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := mintKey{owner: auth.Recipient, eventID: auth.EventID}
	if _, dup := l.byEvent[key]; dup {
		return nil, Classify(&RevertError{Name: "DuplicateEventMint"})
	}
	tokenID := l.nextToken
	l.nextToken++
	l.byEvent[key] = tokenID
	l.owners[tokenID] = auth.Recipient
	l.balances[auth.Recipient]++

	return &MintReceipt{TxHash: l.txHash(auth.Recipient), TokenID: new(big.Int).SetUint64(tokenID)}, nil
}

func (l *SimulatedLedger) CanMintCompanion(_ context.Context, sbtID *big.Int, user common.Address) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name := l.companionBlocker(sbtID, user); name != "" {
		return false, companionReasons[name], nil
	}
	return true, "Eligible", nil
}

var companionReasons = map[string]string{
	"SBTNotOwned":        "SBT not owned by user",
	"SBTAlreadyUpgraded": "already upgraded",
}

// companionBlocker returns the custom error mintCompanion would revert with, or "".
// A used SBT is reported as upgraded whoever asks.
func (l *SimulatedLedger) companionBlocker(sbtID *big.Int, user common.Address) string {
	if sbtID == nil || !sbtID.IsUint64() {
		return "SBTNotOwned"
	}
	id := sbtID.Uint64()
	if _, used := l.companions[id]; used {
		return "SBTAlreadyUpgraded"
	}
	if owner, ok := l.owners[id]; !ok || owner != user {
		return "SBTNotOwned"
	}
	return ""
}

func (l *SimulatedLedger) UpgradeFee(context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.fee), nil
}

func (l *SimulatedLedger) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return big.NewInt(l.balances[owner]), nil
}

func (l *SimulatedLedger) MintCompanion(ctx context.Context, sbtID *big.Int, organizer, upgrader common.Address, fee *big.Int) (*CompanionReceipt, error) {
	if err := l.confirm(ctx); err != nil {
		return nil, Classify(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if name := l.companionBlocker(sbtID, upgrader); name != "" {
		return nil, Classify(&RevertError{Name: name})
	}
	if fee == nil || fee.Cmp(l.fee) < 0 {
		return nil, Classify(&RevertError{Name: "InsufficientFee"})
	}

	premiumID := l.nextPremium
	l.nextPremium++
	l.companions[sbtID.Uint64()] = premiumID

	treasuryCut := new(big.Int).Div(new(big.Int).Mul(fee, big.NewInt(treasuryShare)), big.NewInt(10_000))
	l.credit(l.treasury, treasuryCut)
	l.credit(organizer, new(big.Int).Sub(fee, treasuryCut))

	return &CompanionReceipt{
		TxHash:         l.txHash(upgrader),
		PremiumTokenID: new(big.Int).SetUint64(premiumID),
		Fee:            new(big.Int).Set(fee),
	}, nil
}

func (l *SimulatedLedger) credit(addr common.Address, amount *big.Int) {
	cur, ok := l.payouts[addr]
	if !ok {
		cur = new(big.Int)
		l.payouts[addr] = cur
	}
	cur.Add(cur, amount)
}

// Payout returns the total fee share credited to addr.
func (l *SimulatedLedger) Payout(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.payouts[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// OwnerOf returns the SBT owner, or false when the token does not exist.
func (l *SimulatedLedger) OwnerOf(tokenID uint64) (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[tokenID]
	return owner, ok
}

// txHash derives a unique, deterministic hash. Callers hold mu.
func (l *SimulatedLedger) txHash(from common.Address) common.Hash {
	l.txCount++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], l.txCount)
	return crypto.Keccak256Hash([]byte("merch-sim"), from.Bytes(), n[:])
}

// Health always succeeds.
func (l *SimulatedLedger) Health(context.Context) error {
	return nil
}

var _ Client = (*SimulatedLedger)(nil)
