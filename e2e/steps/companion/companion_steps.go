package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"merch/e2e/steps/claim"
	e2ecommon "merch/e2e/steps/common"
	"merch/internal/claim/signer"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	Saved(key string) string
}

// RegisterSteps registers companion-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &companionSteps{tc: tc}

	ctx.Step(`^"([^"]*)" checks companion eligibility for the minted SBT$`, steps.checkEligibility)
	ctx.Step(`^"([^"]*)" upgrades the minted SBT with organizer "([^"]*)"$`, steps.upgrade)
	ctx.Step(`^"([^"]*)" signs an upgrade of "([^"]*)"'s minted SBT with organizer "([^"]*)"$`, steps.upgradeSignedBy)
	ctx.Step(`^"([^"]*)" upgrades the minted SBT with organizer "([^"]*)" without a signature$`, steps.upgradeUnsigned)
	ctx.Step(`^I request the companion fee$`, steps.requestFee)
	ctx.Step(`^I request the SBT balance of "([^"]*)"$`, steps.requestBalance)
}

type companionSteps struct {
	tc TestContext
}

func (s *companionSteps) sbtID() (json.Number, error) {
	id := s.tc.Saved(claim.SavedTokenID)
	if id == "" {
		return "", fmt.Errorf("no SBT has been minted in this scenario")
	}
	return json.Number(id), nil
}

func (s *companionSteps) checkEligibility(_ context.Context, wallet string) error {
	requester, err := e2ecommon.Wallet(wallet)
	if err != nil {
		return err
	}
	id, err := s.sbtID()
	if err != nil {
		return err
	}
	return s.tc.POST("/companion/eligibility", map[string]interface{}{
		"sbtId":     id,
		"requester": requester.Hex(),
	})
}

func (s *companionSteps) upgrade(ctx context.Context, wallet, organizer string) error {
	return s.upgradeSignedBy(ctx, wallet, wallet, organizer)
}

// upgradeSignedBy submits an upgrade for holder's SBT authorized by signerName.
func (s *companionSteps) upgradeSignedBy(_ context.Context, signerName, holder, organizer string) error {
	body, err := s.upgradeBody(holder, organizer)
	if err != nil {
		return err
	}
	key, err := e2ecommon.WalletKey(signerName)
	if err != nil {
		return err
	}
	sig, err := signer.NewFromHex(key)
	if err != nil {
		return err
	}
	id, ok := new(big.Int).SetString(body["sbtId"].(json.Number).String(), 10)
	if !ok {
		return fmt.Errorf("minted SBT id %v is not an integer", body["sbtId"])
	}
	expiry := time.Now().Add(5 * time.Minute).Unix()
	d, err := signer.BuildUpgradeDigest(id, common.HexToAddress(body["organizer"].(string)), expiry)
	if err != nil {
		return err
	}
	raw, err := sig.Sign(d)
	if err != nil {
		return err
	}
	body["expiry"] = expiry
	body["signature"] = hexutil.Encode(raw)
	return s.tc.POST("/companion/upgrade", body)
}

func (s *companionSteps) upgradeUnsigned(_ context.Context, holder, organizer string) error {
	body, err := s.upgradeBody(holder, organizer)
	if err != nil {
		return err
	}
	return s.tc.POST("/companion/upgrade", body)
}

func (s *companionSteps) upgradeBody(holder, organizer string) (map[string]interface{}, error) {
	requester, err := e2ecommon.Wallet(holder)
	if err != nil {
		return nil, err
	}
	org, err := e2ecommon.Wallet(organizer)
	if err != nil {
		return nil, err
	}
	id, err := s.sbtID()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"sbtId":     id,
		"organizer": org.Hex(),
		"requester": requester.Hex(),
	}, nil
}

func (s *companionSteps) requestFee(context.Context) error {
	return s.tc.GET("/companion/fee", nil)
}

func (s *companionSteps) requestBalance(_ context.Context, wallet string) error {
	owner, err := e2ecommon.Wallet(wallet)
	if err != nil {
		return err
	}
	return s.tc.GET("/sbt/"+owner.Hex()+"/balance", nil)
}
