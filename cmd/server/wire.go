package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"merch/internal/admin"
	"merch/internal/chain"
	claimhandler "merch/internal/claim/handler"
	claimservice "merch/internal/claim/service"
	"merch/internal/claim/signer"
	"merch/internal/claim/store"
	companionhandler "merch/internal/companion/handler"
	companionservice "merch/internal/companion/service"
	"merch/internal/platform/config"
	"merch/internal/platform/database"
	"merch/internal/platform/health"
	"merch/internal/platform/kafka/producer"
	"merch/internal/platform/metrics"
	"merch/internal/platform/redis"
	"merch/internal/platform/tracer"
	httptransport "merch/internal/transport/http"
	"merch/migrations"
	"merch/pkg/platform/audit"
	"merch/pkg/platform/audit/publisher"
	kafkastore "merch/pkg/platform/audit/store/kafka"
	"merch/pkg/platform/audit/store/memory"
	"merch/pkg/platform/circuit"
	"merch/pkg/platform/middleware/metadata"
	"merch/pkg/platform/middleware/request"
	"merch/pkg/secrets"
)

const maxBodyBytes = 1 << 20

// codeStore is what both the claim and admin services need from a backend.
type codeStore interface {
	claimservice.CodeStore
	admin.CodeStore
	Health(ctx context.Context) error
}

// ledger is the union of the claim submitter and the companion reads/writes.
type ledger interface {
	claimservice.Submitter
	companionservice.Ledger
	Health(ctx context.Context) error
}

type application struct {
	router  http.Handler
	issuer  common.Address
	closers []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (*application, error) {
	app := &application{}
	checks := health.New(cfg.Environment)
	m := metrics.New(reg)

	codes, err := buildStore(ctx, cfg.Registry, app, reg)
	if err != nil {
		app.close()
		return nil, err
	}
	checks.RegisterCheck("registry", codes.Health)

	seed, err := seedCodes(ctx, cfg.Registry, codes)
	if err != nil {
		app.close()
		return nil, err
	}
	log.Info("claim codes seeded", "added", seed)

	sig, err := signer.NewFromHex(cfg.IssuerPrivateKey)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("load issuer key: %w", err)
	}
	app.issuer = sig.Issuer()

	onChain, err := buildChain(ctx, cfg.Chain, sig.Issuer(), m, log, app)
	if err != nil {
		app.close()
		return nil, err
	}
	checks.RegisterCheck("chain", onChain.Health)

	auditor, err := buildAudit(cfg, log, app, checks)
	if err != nil {
		app.close()
		return nil, err
	}

	trusted, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	adminHash, err := adminTokenHash(cfg.Server)
	if err != nil {
		app.close()
		return nil, err
	}

	claims := claimservice.New(codes, sig,
		claimservice.WithLogger(log),
		claimservice.WithAuditor(auditor),
		claimservice.WithMetrics(m),
		claimservice.WithSubmitter(onChain),
		claimservice.WithSubmitTimeout(cfg.Chain.SubmitTimeout),
		claimservice.WithReservationTTL(cfg.Registry.ReservationTTL),
	)
	organizers := make([]common.Address, 0, len(cfg.Chain.Organizers))
	for _, org := range cfg.Chain.Organizers {
		organizers = append(organizers, common.HexToAddress(org))
	}
	companion := companionservice.New(onChain,
		companionservice.WithLogger(log),
		companionservice.WithAuditor(auditor),
		companionservice.WithMetrics(m),
		companionservice.WithOrganizers(organizers...),
	)

	handlers := httptransport.Handlers{
		Claims:    claimhandler.New(claims, log),
		Companion: companionhandler.New(companion, log),
		Health:    checks,
	}
	if adminHash != "" {
		handlers.Admin = admin.New(admin.NewService(codes, cfg.Registry.TokenURIBase, auditor, log), log)
	} else {
		log.Warn("admin routes disabled: ADMIN_TOKEN_HASH not set")
	}

	app.router = httptransport.NewRouter(handlers, httptransport.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   maxBodyBytes,
		TrustedProxies: trusted,
		AdminTokenHash: adminHash,
		Metrics:        request.NewMetrics(reg),
	}, log)
	return app, nil
}

func buildStore(ctx context.Context, cfg config.Registry, app *application, reg prometheus.Registerer) (codeStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			return nil, fmt.Errorf("migrate registry: %w", err)
		}
		return store.NewPostgres(pool.DB()), nil
	case config.BackendRedis:
		client, err := redis.New(ctx, redis.DefaultConfig(cfg.RedisURL))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		reg.MustRegister(redis.NewPoolCollector(client))
		return store.NewRedis(client.Client), nil
	default:
		return store.NewInMemory(), nil
	}
}

func seedCodes(ctx context.Context, cfg config.Registry, codes codeStore) (int, error) {
	src := store.SeedSources{TokenURIBase: cfg.TokenURIBase, EnvCodes: cfg.Codes}
	if cfg.CodesFile != "" {
		file, err := store.LoadSeedFile(cfg.CodesFile)
		if err != nil {
			return 0, err
		}
		src.File = file
	}
	seed, err := store.BuildSeed(src, time.Now())
	if err != nil {
		return 0, err
	}
	added, err := codes.Seed(ctx, seed)
	if err != nil {
		return 0, fmt.Errorf("seed claim codes: %w", err)
	}
	return added, nil
}

func buildChain(ctx context.Context, cfg config.Chain, issuer common.Address, m *metrics.Metrics, log *slog.Logger, app *application) (ledger, error) {
	var treasury common.Address
	if cfg.Treasury != "" {
		if !common.IsHexAddress(cfg.Treasury) {
			return nil, fmt.Errorf("TREASURY_ADDRESS is not a valid address")
		}
		treasury = common.HexToAddress(cfg.Treasury)
	}

	if cfg.Mode != config.ChainEthereum {
		log.Warn("using the simulated ledger; nothing is broadcast")
		return chain.NewSimulatedLedger(issuer, chain.WithTreasury(treasury)), nil
	}

	if !common.IsHexAddress(cfg.BasicMerchAddr) || !common.IsHexAddress(cfg.PremiumMerchAddr) {
		return nil, errors.New("BASIC_MERCH_ADDRESS and PREMIUM_MERCH_ADDRESS must be valid addresses")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	app.closers = append(app.closers, func() error { backend.Close(); return nil })

	client, err := chain.NewEthereumClient(backend, chain.EthereumConfig{
		ChainID:      big.NewInt(cfg.ChainID),
		BasicMerch:   common.HexToAddress(cfg.BasicMerchAddr),
		PremiumMerch: common.HexToAddress(cfg.PremiumMerchAddr),
		RelayerKey:   key,
	},
		chain.WithBreaker(circuit.New("rpc", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))),
		chain.WithTracer(tracer.NewOTel()),
		chain.WithMetrics(m),
		chain.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	log.Info("relaying through ethereum rpc", "relayer", client.Relayer().Hex(), "chain_id", cfg.ChainID)
	return client, nil
}

func buildAudit(cfg config.Config, log *slog.Logger, app *application, checks *health.Handler) (*audit.Logger, error) {
	var sink audit.Store = memory.NewInMemoryStore()
	if cfg.Audit.KafkaBrokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.Audit.KafkaBrokers,
			ClientID:        "merch-claim",
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, p.Close)
		checks.RegisterCheck("kafka", p.Health)
		sink = kafkastore.New(p, cfg.Audit.Topic)
	}

	pub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithPublisherLogger(log),
	)
	app.closers = append(app.closers, func() error { pub.Close(); return nil })
	return audit.NewLogger(log, pub), nil
}

// adminTokenHash prefers an explicit bcrypt hash and otherwise hashes the
// plaintext token at startup. Both empty disables the admin routes.
func adminTokenHash(cfg config.Server) (string, error) {
	if cfg.AdminTokenHash != "" {
		if !secrets.IsHash(cfg.AdminTokenHash) {
			return "", fmt.Errorf("ADMIN_TOKEN_HASH is not a bcrypt hash")
		}
		return cfg.AdminTokenHash, nil
	}
	if cfg.AdminToken == "" {
		return "", nil
	}
	hash, err := secrets.Hash(cfg.AdminToken)
	if err != nil {
		return "", fmt.Errorf("hash admin token: %w", err)
	}
	return hash, nil
}
