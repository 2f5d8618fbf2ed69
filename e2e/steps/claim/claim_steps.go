package claim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	e2ecommon "merch/e2e/steps/common"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	"merch/pkg/testutil"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) string
}

// Keys under which claim steps save values for later steps.
const (
	SavedTokenID   = "tokenId"
	SavedRecipient = "recipient"
)

// RegisterSteps registers claim-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &claimSteps{tc: tc}

	ctx.Step(`^I validate the code "([^"]*)"$`, steps.validateCode)
	ctx.Step(`^"([^"]*)" requests a mint signature for code "([^"]*)"$`, steps.requestSignature)
	ctx.Step(`^"([^"]*)" requests a mint signature for code "([^"]*)" with event id (\d+)$`, steps.requestSignatureWithEvent)
	ctx.Step(`^the signature should recover to the issuer$`, steps.signatureShouldRecoverToIssuer)
	ctx.Step(`^"([^"]*)" claims code "([^"]*)" through the relayer$`, steps.claimThroughRelayer)
	ctx.Step(`^"([^"]*)" reserves code "([^"]*)" for event "([^"]*)"$`, steps.reserve)
	ctx.Step(`^the minted token id should be (\d+)$`, steps.mintedTokenIDShouldBe)
}

type claimSteps struct {
	tc TestContext
}

func (s *claimSteps) validateCode(_ context.Context, code string) error {
	return s.tc.POST("/api/validate-code", map[string]interface{}{"code": code})
}

func (s *claimSteps) requestSignature(ctx context.Context, wallet, code string) error {
	b := models.DeriveBinding(code, "")
	return s.sign(wallet, code, b.EventID, b.TokenURI)
}

func (s *claimSteps) requestSignatureWithEvent(_ context.Context, wallet, code string, eventID int) error {
	b := models.DeriveBinding(code, "")
	return s.sign(wallet, code, uint64(eventID), b.TokenURI)
}

func (s *claimSteps) sign(wallet, code string, eventID uint64, tokenURI string) error {
	to, err := e2ecommon.Wallet(wallet)
	if err != nil {
		return err
	}
	s.tc.Save(SavedRecipient, to.Hex())
	return s.tc.POST("/sign-mint", map[string]interface{}{
		"to":       to.Hex(),
		"eventId":  eventID,
		"tokenURI": tokenURI,
		"code":     code,
	})
}

func (s *claimSteps) signatureShouldRecoverToIssuer(context.Context) error {
	fields := make(map[string]string, 3)
	for _, name := range []string{"signature", "eventId", "tokenURI"} {
		v, err := s.tc.GetResponseField(name)
		if err != nil {
			return err
		}
		fields[name] = fmt.Sprint(v)
	}

	eventID, ok := new(big.Int).SetString(fields["eventId"], 10)
	if !ok {
		return fmt.Errorf("eventId %q is not an integer", fields["eventId"])
	}
	sig, err := hexutil.Decode(fields["signature"])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	digest, err := signer.BuildDigest(common.HexToAddress(s.tc.Saved(SavedRecipient)), eventID, fields["tokenURI"])
	if err != nil {
		return err
	}
	got, err := signer.Recover(digest, sig)
	if err != nil {
		return err
	}
	if got != testutil.IssuerAddress {
		return fmt.Errorf("signature recovers to %s, want %s", got.Hex(), testutil.IssuerAddress.Hex())
	}
	return nil
}

func (s *claimSteps) claimThroughRelayer(_ context.Context, wallet, code string) error {
	to, err := e2ecommon.Wallet(wallet)
	if err != nil {
		return err
	}
	if err := s.tc.POST("/api/claim", map[string]interface{}{
		"code":      code,
		"wallet":    to.Hex(),
		"eventName": "E2E Event",
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 200 {
		id, err := s.tc.GetResponseField("tokenId")
		if err != nil {
			return err
		}
		s.tc.Save(SavedTokenID, fmt.Sprint(id))
	}
	return nil
}

func (s *claimSteps) reserve(_ context.Context, wallet, code, eventName string) error {
	to, err := e2ecommon.Wallet(wallet)
	if err != nil {
		return err
	}
	return s.tc.POST("/api/reserve", map[string]interface{}{
		"code":      code,
		"wallet":    to.Hex(),
		"eventName": eventName,
	})
}

func (s *claimSteps) mintedTokenIDShouldBe(_ context.Context, expected int) error {
	if got := s.tc.Saved(SavedTokenID); got != fmt.Sprint(expected) {
		return fmt.Errorf("minted token id: expected %d but got %q", expected, got)
	}
	return nil
}
