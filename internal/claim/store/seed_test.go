package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merch/internal/claim/models"
	"merch/internal/claim/store"
	"merch/pkg/testutil"
)

const seedYAML = `
tokenURIBase: ipfs://QmEvent
codes:
  - code: vip01
    eventId: 7
    tokenURI: ipfs://QmVip
  - code: PLAIN
    eventId: 9
  - code: demo123
`

func TestParseSeed(t *testing.T) {
	sf, err := store.ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmEvent", sf.TokenURIBase)
	require.Len(t, sf.Codes, 3)
	assert.Equal(t, uint64(7), sf.Codes[0].EventID)

	t.Run("empty document", func(t *testing.T) {
		sf, err := store.ParseSeed(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, sf.Codes)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := store.ParseSeed(strings.NewReader("codez: []\n"))
		assert.Error(t, err)
	})
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	sf, err := store.LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, sf.Codes, 3)

	_, err = store.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildSeed(t *testing.T) {
	now := testutil.FixedTime

	t.Run("falls back to demo codes", func(t *testing.T) {
		codes, err := store.BuildSeed(store.SeedSources{}, now)
		require.NoError(t, err)
		require.Len(t, codes, len(models.DemoCodes))
		assert.Equal(t, "EVENT2025", codes[0].Code)
		assert.Equal(t, uint64(32322), codes[0].EventID)
		assert.Equal(t, "ipfs://QmMockHash32322", codes[0].TokenURI)
	})

	t.Run("env codes replace the demo set", func(t *testing.T) {
		codes, err := store.BuildSeed(store.SeedSources{EnvCodes: []string{"DEMO123"}, TokenURIBase: "ipfs://QmBase"}, now)
		require.NoError(t, err)
		require.Len(t, codes, 1)
		assert.Equal(t, "ipfs://QmBase183236", codes[0].TokenURI)
		assert.Equal(t, models.StatusUnused, codes[0].Status)
	})

	t.Run("file entries honour explicit bindings", func(t *testing.T) {
		sf, err := store.ParseSeed(strings.NewReader(seedYAML))
		require.NoError(t, err)

		codes, err := store.BuildSeed(store.SeedSources{EnvCodes: []string{"DEMO123"}, File: sf}, now)
		require.NoError(t, err)
		require.Len(t, codes, 3, "DEMO123 from env wins over the file duplicate")

		byCode := map[string]models.ClaimCode{}
		for _, c := range codes {
			byCode[c.Code] = c
		}
		assert.Equal(t, "ipfs://QmMockHash183236", byCode["DEMO123"].TokenURI)
		assert.Equal(t, uint64(7), byCode["VIP01"].EventID)
		assert.Equal(t, "ipfs://QmVip", byCode["VIP01"].TokenURI)
		assert.Equal(t, "ipfs://QmEvent9", byCode["PLAIN"].TokenURI)
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		_, err := store.BuildSeed(store.SeedSources{EnvCodes: []string{"bad code!"}}, now)
		assert.Error(t, err)
	})
}
