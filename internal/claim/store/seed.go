package store

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"merch/internal/claim/models"
	"merch/pkg/validation"
)

// SeedFile is the YAML layout accepted by CLAIM_CODES_FILE:
//
//	tokenURIBase: ipfs://QmEventHash
//	codes:
//	  - code: DEMO123
//	  - code: VIP01
//	    eventId: 7
//	    tokenURI: ipfs://QmVip
type SeedFile struct {
	TokenURIBase string      `yaml:"tokenURIBase"`
	Codes        []SeedEntry `yaml:"codes"`
}

// SeedEntry pins an optional explicit binding for one code.
type SeedEntry struct {
	Code     string `yaml:"code" json:"code"`
	EventID  uint64 `yaml:"eventId" json:"eventId,omitempty"`
	TokenURI string `yaml:"tokenURI" json:"tokenURI,omitempty"`
}

// LoadSeedFile reads and parses a YAML seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a seed document. Unknown fields are rejected.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sf SeedFile
	if err := dec.Decode(&sf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &sf, nil
}

// SeedSources lists every place codes can come from at startup.
type SeedSources struct {
	TokenURIBase string
	EnvCodes     []string
	File         *SeedFile
}

// BuildSeed merges env codes and file entries into registry records. When
// neither source names a code the demo set is used. The first occurrence of
// a code wins.
func BuildSeed(src SeedSources, now time.Time) ([]models.ClaimCode, error) {
	entries := make([]SeedEntry, 0, len(src.EnvCodes))
	for _, c := range src.EnvCodes {
		entries = append(entries, SeedEntry{Code: c})
	}
	base := src.TokenURIBase
	var fileEntries []SeedEntry
	if src.File != nil {
		fileEntries = src.File.Codes
		if src.File.TokenURIBase != "" {
			base = src.File.TokenURIBase
		}
	}
	if len(entries) == 0 && len(fileEntries) == 0 {
		for _, c := range models.DemoCodes {
			entries = append(entries, SeedEntry{Code: c})
		}
	}

	out := make([]models.ClaimCode, 0, len(entries)+len(fileEntries))
	seen := make(map[string]struct{}, cap(out))
	add := func(e SeedEntry, base string) error {
		code := models.NormalizeCode(e.Code)
		if !validation.IsClaimCode(code) {
			return fmt.Errorf("invalid claim code %q", e.Code)
		}
		if _, dup := seen[code]; dup {
			return nil
		}
		seen[code] = struct{}{}
		out = append(out, NewSeedCode(e, base, now))
		return nil
	}
	for _, e := range entries {
		if err := add(e, src.TokenURIBase); err != nil {
			return nil, err
		}
	}
	for _, e := range fileEntries {
		if err := add(e, base); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NewSeedCode builds an Unused record, honouring an explicit binding when
// the entry carries one.
func NewSeedCode(e SeedEntry, base string, now time.Time) models.ClaimCode {
	c := models.NewClaimCode(e.Code, base, now)
	if e.EventID > 0 {
		c.EventID = e.EventID
		c.TokenURI = e.TokenURI
		if c.TokenURI == "" {
			if base == "" {
				base = models.DefaultTokenURIBase
			}
			c.TokenURI = fmt.Sprintf("%s%d", base, e.EventID)
		}
	} else if e.TokenURI != "" {
		c.TokenURI = e.TokenURI
	}
	return c
}
