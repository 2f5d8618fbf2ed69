package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"merch/internal/admin"
	"merch/internal/chain"
	claimhandler "merch/internal/claim/handler"
	claimservice "merch/internal/claim/service"
	"merch/internal/claim/signer"
	"merch/internal/claim/store"
	companionhandler "merch/internal/companion/handler"
	companionservice "merch/internal/companion/service"
	"merch/internal/platform/config"
	"merch/internal/platform/health"
	httptransport "merch/internal/transport/http"
	"merch/pkg/platform/audit"
	"merch/pkg/platform/audit/publisher"
	"merch/pkg/platform/audit/store/memory"
	"merch/pkg/secrets"
)

const adminToken = "e2e-admin-token"

// seedCodes are registered on every in-process server.
var seedCodes = []string{"DEMO123", "VIP001", "VIP002"}

// startServer wires the service the way cmd/server does with the memory
// registry, the simulated ledger and the development issuer key.
func startServer() *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Now()

	codes := store.NewInMemory()
	seed, err := store.BuildSeed(store.SeedSources{EnvCodes: seedCodes}, now)
	if err != nil {
		panic(err)
	}
	if _, err := codes.Seed(context.Background(), seed); err != nil {
		panic(err)
	}

	sig, err := signer.NewFromHex(config.DevIssuerKey)
	if err != nil {
		panic(err)
	}
	ledger := chain.NewSimulatedLedger(sig.Issuer())
	auditor := audit.NewLogger(logger, publisher.NewPublisher(memory.NewInMemoryStore()))

	hash, err := secrets.Hash(adminToken)
	if err != nil {
		panic(err)
	}

	claims := claimservice.New(codes, sig,
		claimservice.WithLogger(logger),
		claimservice.WithAuditor(auditor),
		claimservice.WithSubmitter(ledger),
	)
	companion := companionservice.New(ledger,
		companionservice.WithLogger(logger),
		companionservice.WithAuditor(auditor),
	)
	router := httptransport.NewRouter(httptransport.Handlers{
		Claims:    claimhandler.New(claims, logger),
		Companion: companionhandler.New(companion, logger),
		Admin:     admin.New(admin.NewService(codes, "", auditor, logger), logger),
		Health:    health.New("test"),
	}, httptransport.Options{AdminTokenHash: hash, MaxBodyBytes: 1 << 20}, logger)

	return httptest.NewServer(router)
}
