// Package chain submits mint authorizations and companion upgrades to the
// credential contracts. EthereumClient talks to a real RPC endpoint;
// SimulatedLedger reproduces the contract rules in process.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"merch/internal/claim/models"
)

// MintReceipt is the confirmed result of a mintSBT transaction.
type MintReceipt struct {
	TxHash  common.Hash
	TokenID *big.Int
}

// CompanionReceipt is the confirmed result of a mintCompanion transaction.
type CompanionReceipt struct {
	TxHash         common.Hash
	PremiumTokenID *big.Int
	Fee            *big.Int
}

// Submitter sends a signed mint authorization and waits for the receipt.
// Failures are returned as *SubmissionError.
type Submitter interface {
	SubmitMint(ctx context.Context, auth *models.MintAuthorization) (*MintReceipt, error)
}

// Ledger covers the companion contract and balance reads.
type Ledger interface {
	CanMintCompanion(ctx context.Context, sbtID *big.Int, user common.Address) (bool, string, error)
	UpgradeFee(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	MintCompanion(ctx context.Context, sbtID *big.Int, organizer, upgrader common.Address, fee *big.Int) (*CompanionReceipt, error)
}

// Client is what the server wires: both halves plus a readiness probe.
type Client interface {
	Submitter
	Ledger
	Health(ctx context.Context) error
}

// DefaultUpgradeFee is 0.001 ETH in wei, used when upgradeFee() cannot be read.
var DefaultUpgradeFee = big.NewInt(1_000_000_000_000_000)

var weiPerEther = new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000))

// FormatEther renders wei as an ether decimal with four fractional digits.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0000"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return f.Text('f', 4)
}
