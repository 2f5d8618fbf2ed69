package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/mock/gomock"

	"merch/internal/chain"
	"merch/internal/claim/models"
	"merch/internal/claim/signer"
	dErrors "merch/pkg/domain-errors"
	"merch/pkg/platform/sentinel"
	"merch/pkg/testutil"
)

var fakeSignature = append(make([]byte, 64), 27)

func (s *ServiceSuite) phaseAndCode(err error) (models.Phase, dErrors.Code) {
	s.Require().Error(err)
	phase, ok := PhaseOf(err)
	s.Require().True(ok, "error must carry a phase: %v", err)
	return phase, dErrors.CodeOf(err)
}

func (s *ServiceSuite) TestValidate() {
	ctx := context.Background()

	s.Run("normalizes and returns the binding", func() {
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
		c, err := s.service.Validate(ctx, "  demo123 ")
		s.Require().NoError(err)
		s.Equal(uint64(42), c.EventID)
	})

	s.Run("unknown code", func() {
		s.codes.EXPECT().Get(gomock.Any(), "NOPE").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Validate(ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeClaimInvalid))
		s.Equal("Invalid claim code", err.Error())
	})

	s.Run("used code", func() {
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.used("DEMO123", testutil.Wallets.Alice), nil)
		_, err := s.service.Validate(ctx, "DEMO123")
		s.True(dErrors.HasCode(err, dErrors.CodeClaimUsed))
	})

	s.Run("reserved code is still valid", func() {
		c := s.unused("DEMO123")
		c.ApplyReserve(testutil.Wallets.Bob.Hex(), s.now.Add(time.Minute))
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(c, nil)
		_, err := s.service.Validate(ctx, "DEMO123")
		s.NoError(err)
	})

	s.Run("empty code never touches the registry", func() {
		_, err := s.service.Validate(ctx, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("registry failure is internal", func() {
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(nil, errors.New("connection reset"))
		_, err := s.service.Validate(ctx, "DEMO123")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestAuthorizeRunsPhasesInOrder() {
	alice := testutil.Wallets.Alice
	gomock.InOrder(
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil),
		s.codes.EXPECT().MarkUsed(gomock.Any(), "DEMO123", alice.Hex(), s.now).Return(s.used("DEMO123", alice), nil),
		s.signer.EXPECT().Sign(gomock.Any()).DoAndReturn(func(d signer.Digest) ([]byte, error) {
			s.Equal(common.HexToHash("0x8aa6a0b73bfccffe6b21ede8f789c8473f2242dc518f97325b7577276767f4d0"), d.EthSigned)
			return fakeSignature, nil
		}),
	)

	auth, err := s.service.Authorize(context.Background(), AuthorizeRequest{
		Code: "demo123", Recipient: alice, EventID: 42, TokenURI: "ipfs://QmMockHash42",
	})
	s.Require().NoError(err)
	s.Equal(fakeSignature, auth.Signature)
	s.Equal(testutil.IssuerAddress, auth.Issuer)
	s.Equal(common.HexToHash("0xecd3ae75da0703e454dac3e92e70b8ff2218425a9cf8ef2ff21fc485ce071487"), auth.MessageHash)
	s.Equal([]string{"code_consumed", "mint_authorized"}, s.actions())
}

func (s *ServiceSuite) TestAuthorizeRejectsBindingMismatchBeforeConsuming() {
	tests := map[string]AuthorizeRequest{
		"event id":  {Code: "DEMO123", Recipient: testutil.Wallets.Alice, EventID: 43, TokenURI: "ipfs://QmMockHash42"},
		"token uri": {Code: "DEMO123", Recipient: testutil.Wallets.Alice, EventID: 42, TokenURI: "ipfs://QmOther"},
	}
	for name, req := range tests {
		s.Run(name, func() {
			s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
			// no MarkUsed expectation: consuming would fail the test
			_, err := s.service.Authorize(context.Background(), req)
			phase, code := s.phaseAndCode(err)
			s.Equal(models.PhaseValidate, phase)
			s.Equal(dErrors.CodeBadRequest, code)
		})
	}
}

func (s *ServiceSuite) TestAuthorizeConsumeConflicts() {
	tests := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{"lost the race", sentinel.ErrAlreadyUsed, dErrors.CodeClaimUsed},
		{"held by another wallet", sentinel.ErrReserved, dErrors.CodeClaimReserved},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
			s.codes.EXPECT().MarkUsed(gomock.Any(), "DEMO123", gomock.Any(), gomock.Any()).Return(nil, tt.err)

			_, err := s.service.Authorize(context.Background(), AuthorizeRequest{
				Code: "DEMO123", Recipient: testutil.Wallets.Alice, EventID: 42, TokenURI: "ipfs://QmMockHash42",
			})
			phase, code := s.phaseAndCode(err)
			s.Equal(models.PhaseConsume, phase)
			s.Equal(tt.code, code)
		})
	}
}

func (s *ServiceSuite) TestSigningFailureLeavesCodeConsumed() {
	alice := testutil.Wallets.Alice
	s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
	s.codes.EXPECT().MarkUsed(gomock.Any(), "DEMO123", alice.Hex(), s.now).Return(s.used("DEMO123", alice), nil)
	s.signer.EXPECT().Sign(gomock.Any()).Return(nil, &signer.SigningError{Err: errors.New("hsm offline")})

	_, err := s.service.Authorize(context.Background(), AuthorizeRequest{
		Code: "DEMO123", Recipient: alice, EventID: 42, TokenURI: "ipfs://QmMockHash42",
	})
	phase, code := s.phaseAndCode(err)
	s.Equal(models.PhaseSign, phase)
	s.Equal(dErrors.CodeSigningFailed, code)
	var de *dErrors.Error
	s.Require().ErrorAs(err, &de)
	s.Equal("Failed to sign mint", de.Message)

	var signErr *signer.SigningError
	s.ErrorAs(err, &signErr)
	s.Equal([]string{"code_consumed", "claim_failed"}, s.actions())
}

func (s *ServiceSuite) expectConsumedAndSigned(code string, to common.Address) {
	s.codes.EXPECT().Get(gomock.Any(), code).Return(s.unused(code), nil)
	s.codes.EXPECT().MarkUsed(gomock.Any(), code, to.Hex(), s.now).Return(s.used(code, to), nil)
	s.signer.EXPECT().Sign(gomock.Any()).Return(fakeSignature, nil)
}

func (s *ServiceSuite) TestClaimSubmitsAuthorization() {
	alice := testutil.Wallets.Alice
	s.expectConsumedAndSigned("DEMO123", alice)
	txHash := common.HexToHash("0xabc")
	s.submitter.EXPECT().SubmitMint(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, auth *models.MintAuthorization) (*chain.MintReceipt, error) {
			_, hasDeadline := ctx.Deadline()
			s.True(hasDeadline, "submission must be bounded")
			s.Equal(alice, auth.Recipient)
			s.Equal(uint64(42), auth.EventID)
			return &chain.MintReceipt{TxHash: txHash, TokenID: big.NewInt(7)}, nil
		})

	res, err := s.service.Claim(context.Background(), "DEMO123", alice)
	s.Require().NoError(err)
	s.Equal(txHash, res.Receipt.TxHash)
	s.Equal(int64(7), res.Receipt.TokenID.Int64())
	s.Equal([]string{"code_consumed", "mint_authorized", "mint_submitted"}, s.actions())
}

func (s *ServiceSuite) TestClaimSubmissionRejected() {
	alice := testutil.Wallets.Alice
	s.expectConsumedAndSigned("DEMO123", alice)
	s.submitter.EXPECT().SubmitMint(gomock.Any(), gomock.Any()).
		Return(nil, chain.Classify(&chain.RevertError{Name: "DuplicateEventMint"}))

	_, err := s.service.Claim(context.Background(), "DEMO123", alice)
	phase, code := s.phaseAndCode(err)
	s.Equal(models.PhaseSubmit, phase)
	s.Equal(dErrors.CodeSubmissionFailed, code)

	var ce *ClaimError
	s.Require().ErrorAs(err, &ce)
	s.Equal(string(chain.ReasonDuplicateClaim), ce.Reason)
	s.False(ce.Retryable())
	s.True(strings.HasPrefix(err.Error(), "submit: "))
}

func (s *ServiceSuite) TestClaimSubmissionTimeout() {
	alice := testutil.Wallets.Alice
	s.expectConsumedAndSigned("DEMO123", alice)
	s.submitter.EXPECT().SubmitMint(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *models.MintAuthorization) (*chain.MintReceipt, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := s.service.Claim(context.Background(), "DEMO123", alice)
	var ce *ClaimError
	s.Require().ErrorAs(err, &ce)
	s.Equal(models.PhaseSubmit, ce.Phase)
	s.Equal(string(chain.ReasonTimeout), ce.Reason)
	s.True(ce.Retryable())
}

func (s *ServiceSuite) TestClaimStopsAtFirstFailingPhase() {
	s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.used("DEMO123", testutil.Wallets.Bob), nil)

	_, err := s.service.Claim(context.Background(), "DEMO123", testutil.Wallets.Alice)
	phase, code := s.phaseAndCode(err)
	s.Equal(models.PhaseValidate, phase)
	s.Equal(dErrors.CodeClaimUsed, code)
}

func (s *ServiceSuite) TestClaimWithoutSubmitter() {
	svc := New(s.codes, s.signer)
	_, err := svc.Claim(context.Background(), "DEMO123", testutil.Wallets.Alice)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestReserve() {
	alice := testutil.Wallets.Alice

	s.Run("places a hold for the ttl", func() {
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
		s.codes.EXPECT().Reserve(gomock.Any(), "DEMO123", alice.Hex(), s.now, s.now.Add(defaultReservationTTL)).
			Return(s.unused("DEMO123"), nil)

		res, err := s.service.Reserve(context.Background(), ReserveRequest{
			Code: "demo123", Wallet: alice, EventName: " Base Meetup ", Email: "a@example.com",
		})
		s.Require().NoError(err)
		s.True(strings.HasPrefix(res.ReservationID, "RES-"))
		s.Equal("Base Meetup", res.EventName)
		s.Equal(s.now.Add(defaultReservationTTL), res.ExpiresAt)
		s.Equal(uint64(42), res.EventID)
	})

	s.Run("held by someone else", func() {
		s.codes.EXPECT().Get(gomock.Any(), "DEMO123").Return(s.unused("DEMO123"), nil)
		s.codes.EXPECT().Reserve(gomock.Any(), "DEMO123", alice.Hex(), gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrReserved)

		_, err := s.service.Reserve(context.Background(), ReserveRequest{Code: "DEMO123", Wallet: alice, EventName: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeClaimReserved))
	})
}
