package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := FromEnv()
	s.Require().NoError(err)

	s.Equal(":8080", cfg.Server.Addr)
	s.Equal(BackendMemory, cfg.Registry.Backend)
	s.Equal(ChainSimulated, cfg.Chain.Mode)
	s.Equal("ipfs://QmMockHash", cfg.Registry.TokenURIBase)
	s.Equal(30*time.Second, cfg.Chain.SubmitTimeout)
	s.Equal(15*time.Minute, cfg.Registry.ReservationTTL)
	s.Equal(DevIssuerKey, cfg.IssuerPrivateKey)
	s.Equal("merch.audit", cfg.Audit.Topic)
}

func (s *ConfigSuite) TestOverrides() {
	s.T().Setenv("CLAIM_CODES", "demo123, DEMO123,test456")
	s.T().Setenv("SUBMIT_TIMEOUT", "5s")
	s.T().Setenv("REGISTRY_BACKEND", "Redis")
	s.T().Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	s.Require().NoError(err)

	s.Equal([]string{"DEMO123", "TEST456"}, cfg.Registry.Codes)
	s.Equal(5*time.Second, cfg.Chain.SubmitTimeout)
	s.Equal(BackendRedis, cfg.Registry.Backend)
}

func (s *ConfigSuite) TestInvalid() {
	cases := map[string]map[string]string{
		"bad duration":             {"SUBMIT_TIMEOUT": "soon"},
		"postgres without url":     {"REGISTRY_BACKEND": "postgres"},
		"unknown backend":          {"REGISTRY_BACKEND": "etcd"},
		"ethereum without rpc":     {"CHAIN_MODE": "ethereum"},
		"production without key":   {"ENVIRONMENT": "production"},
		"production with dev key":  {"ENVIRONMENT": "production", "ISSUER_PRIVATE_KEY": DevIssuerKey},
		"bad chain id":             {"CHAIN_ID": "base"},
		"non-positive submit time": {"SUBMIT_TIMEOUT": "0s"},
		"bad organizer":            {"COMPANION_ORGANIZERS": "0x00000000000000000000000000000000000000bb,alice"},
	}
	for name, env := range cases {
		s.Run(name, func() {
			for k, v := range env {
				s.T().Setenv(k, v)
			}
			_, err := FromEnv()
			s.Error(err)
		})
	}
}

func TestEthereumModeRequirements(t *testing.T) {
	t.Setenv("CHAIN_MODE", "ethereum")
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("BASIC_MERCH_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("PREMIUM_MERCH_ADDRESS", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	t.Setenv("RELAYER_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

	_, err := FromEnv()
	require.ErrorContains(t, err, "COMPANION_ORGANIZERS")

	t.Setenv("COMPANION_ORGANIZERS", "0x00000000000000000000000000000000000000bb, 0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(84532), cfg.Chain.ChainID)
	assert.Len(t, cfg.Chain.Organizers, 2)
}
