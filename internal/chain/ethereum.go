package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"merch/internal/claim/models"
	"merch/internal/platform/metrics"
	"merch/internal/platform/tracer"
	"merch/pkg/platform/circuit"
)

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// boundContract is the subset of *bind.BoundContract the client uses.
type boundContract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

type receiptWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// EthereumConfig names the deployed contracts and the relayer account.
type EthereumConfig struct {
	ChainID      *big.Int
	BasicMerch   common.Address
	PremiumMerch common.Address
	RelayerKey   *ecdsa.PrivateKey
}

// EthereumClient relays transactions from a funded relayer account. Reads
// and writes share one circuit breaker so a dead RPC endpoint fails fast.
type EthereumClient struct {
	basic   boundContract
	premium boundContract
	wait    receiptWaiter
	health  func(ctx context.Context) error

	basicAddr   common.Address
	premiumAddr common.Address
	relayer     common.Address
	newOpts     func(ctx context.Context) (*bind.TransactOpts, error)

	// sendMu serializes broadcasts so pending nonces are not reused.
	sendMu sync.Mutex

	breaker *circuit.Breaker
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type EthereumOption func(*EthereumClient)

func WithBreaker(b *circuit.Breaker) EthereumOption {
	return func(c *EthereumClient) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithTracer(t tracer.Tracer) EthereumOption {
	return func(c *EthereumClient) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) EthereumOption {
	return func(c *EthereumClient) {
		c.metrics = m
	}
}

func WithLogger(l *slog.Logger) EthereumOption {
	return func(c *EthereumClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewEthereumClient binds both contracts on backend.
func NewEthereumClient(backend Backend, cfg EthereumConfig, opts ...EthereumOption) (*EthereumClient, error) {
	if backend == nil {
		return nil, errors.New("chain backend is required")
	}
	if cfg.RelayerKey == nil {
		return nil, errors.New("relayer key is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	if cfg.BasicMerch == (common.Address{}) || cfg.PremiumMerch == (common.Address{}) {
		return nil, errors.New("contract addresses are required")
	}

	key, chainID := cfg.RelayerKey, new(big.Int).Set(cfg.ChainID)
	c := newEthereumClient(
		bind.NewBoundContract(cfg.BasicMerch, basicMerchABI, backend, backend, backend),
		bind.NewBoundContract(cfg.PremiumMerch, premiumMerchABI, backend, backend, backend),
		func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
			return bind.WaitMined(ctx, backend, tx)
		},
		func(ctx context.Context) (*bind.TransactOpts, error) {
			o, err := bind.NewKeyedTransactorWithChainID(key, chainID)
			if err != nil {
				return nil, err
			}
			o.Context = ctx
			return o, nil
		},
		opts...,
	)
	c.basicAddr = cfg.BasicMerch
	c.premiumAddr = cfg.PremiumMerch
	c.relayer = crypto.PubkeyToAddress(key.PublicKey)
	c.health = func(ctx context.Context) error {
		_, err := backend.HeaderByNumber(ctx, nil)
		return err
	}
	return c, nil
}

func newEthereumClient(basic, premium boundContract, wait receiptWaiter, newOpts func(context.Context) (*bind.TransactOpts, error), opts ...EthereumOption) *EthereumClient {
	c := &EthereumClient{
		basic:   basic,
		premium: premium,
		wait:    wait,
		newOpts: newOpts,
		health:  func(context.Context) error { return nil },
		breaker: circuit.New("chain-rpc"),
		tracer:  tracer.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Relayer returns the address paying gas.
func (c *EthereumClient) Relayer() common.Address {
	return c.relayer
}

func (c *EthereumClient) SubmitMint(ctx context.Context, auth *models.MintAuthorization) (*MintReceipt, error) {
	ctx, span := c.tracer.Start(ctx, "chain.SubmitMint",
		tracer.String("recipient", auth.Recipient.Hex()),
		tracer.Uint64("event_id", auth.EventID),
	)
	receipt, err := c.submitMint(ctx, auth)
	span.End(err)
	return receipt, err
}

func (c *EthereumClient) submitMint(ctx context.Context, auth *models.MintAuthorization) (*MintReceipt, error) {
	rcpt, err := c.transact(ctx, c.basic, nil, "mintSBT", auth.Recipient, auth.EventIDBig(), auth.TokenURI, auth.Signature)
	if err != nil {
		return nil, err
	}
	tokenID := indexedTopic(rcpt.Logs, c.basicAddr, basicMerchABI.Events["SBTMinted"].ID, 2)
	return &MintReceipt{TxHash: rcpt.TxHash, TokenID: tokenID}, nil
}

func (c *EthereumClient) MintCompanion(ctx context.Context, sbtID *big.Int, organizer, upgrader common.Address, fee *big.Int) (*CompanionReceipt, error) {
	ctx, span := c.tracer.Start(ctx, "chain.MintCompanion",
		tracer.String("sbt_id", sbtID.String()),
		tracer.String("upgrader", upgrader.Hex()),
	)
	rcpt, err := c.transact(ctx, c.premium, fee, "mintCompanion", sbtID, organizer, upgrader)
	span.End(err)
	if err != nil {
		return nil, err
	}
	premiumID := indexedTopic(rcpt.Logs, c.premiumAddr, premiumMerchABI.Events["CompanionMinted"].ID, 3)
	return &CompanionReceipt{TxHash: rcpt.TxHash, PremiumTokenID: premiumID, Fee: fee}, nil
}

// transact broadcasts one call and waits for a successful receipt.
func (c *EthereumClient) transact(ctx context.Context, contract boundContract, value *big.Int, method string, params ...interface{}) (*types.Receipt, error) {
	if !c.breaker.Allow() {
		return nil, &SubmissionError{Reason: ReasonUnavailable, Err: fmt.Errorf("circuit %s open", c.breaker.Name())}
	}
	opts, err := c.newOpts(ctx)
	if err != nil {
		return nil, &SubmissionError{Reason: ReasonUnknown, Err: fmt.Errorf("build transactor: %w", err)}
	}
	if value != nil {
		opts.Value = new(big.Int).Set(value)
	}

	c.sendMu.Lock()
	tx, err := contract.Transact(opts, method, params...)
	c.sendMu.Unlock()
	if err != nil {
		c.record(err)
		return nil, Classify(err)
	}
	c.logger.InfoContext(ctx, "transaction broadcast", "method", method, "tx_hash", tx.Hash().Hex())

	rcpt, err := c.wait(ctx, tx)
	if err != nil {
		c.record(err)
		se := Classify(err)
		se.TxHash = tx.Hash()
		return nil, se
	}
	c.record(nil)
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, &SubmissionError{Reason: ReasonReverted, TxHash: tx.Hash(), Err: fmt.Errorf("%s reverted in block %s", method, rcpt.BlockNumber)}
	}
	return rcpt, nil
}

func (c *EthereumClient) CanMintCompanion(ctx context.Context, sbtID *big.Int, user common.Address) (bool, string, error) {
	out, err := c.call(ctx, c.premium, "canMintCompanion", sbtID, user)
	if err != nil {
		return false, "", err
	}
	if len(out) != 2 {
		return false, "", fmt.Errorf("canMintCompanion: unexpected %d outputs", len(out))
	}
	ok, okBool := out[0].(bool)
	reason, okStr := out[1].(string)
	if !okBool || !okStr {
		return false, "", errors.New("canMintCompanion: unexpected output types")
	}
	return ok, reason, nil
}

func (c *EthereumClient) UpgradeFee(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, c.premium, "upgradeFee")
}

func (c *EthereumClient) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, c.basic, "balanceOf", owner)
}

func (c *EthereumClient) callUint(ctx context.Context, contract boundContract, method string, params ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, contract, method, params...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected %d outputs", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

func (c *EthereumClient) call(ctx context.Context, contract boundContract, method string, params ...interface{}) ([]interface{}, error) {
	ctx, span := c.tracer.Start(ctx, "chain.call", tracer.String("method", method))
	if !c.breaker.Allow() {
		err := fmt.Errorf("circuit %s open", c.breaker.Name())
		span.End(err)
		return nil, err
	}
	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	c.record(err)
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// record feeds only endpoint failures to the breaker; reverts mean the node is fine.
func (c *EthereumClient) record(err error) {
	if err != nil && !isInfrastructure(err) {
		err = nil
	}
	if c.breaker.Record(err) {
		state := c.breaker.State().String()
		c.logger.Warn("chain circuit state changed", "breaker", c.breaker.Name(), "state", state)
		c.metrics.IncCircuitTransition(c.breaker.Name(), state)
	}
}

// Health reports whether the RPC endpoint answers.
func (c *EthereumClient) Health(ctx context.Context) error {
	return c.health(ctx)
}

// indexedTopic returns topic[pos] of the first log from addr with the given event id.
func indexedTopic(logs []*types.Log, addr common.Address, eventID common.Hash, pos int) *big.Int {
	for _, l := range logs {
		if l == nil || l.Address != addr || len(l.Topics) <= pos || l.Topics[0] != eventID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[pos].Bytes())
	}
	return nil
}

var _ Client = (*EthereumClient)(nil)
