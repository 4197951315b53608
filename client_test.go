package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	session "github.com/sessionkeys/starknet-session/go"
	"github.com/sessionkeys/starknet-session/go/internal/mocks"
	"github.com/sessionkeys/starknet-session/go/starknet"
)

const (
	ownerAddress = "0x5e1"
	strkToken    = "0x4718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
)

var (
	windowStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(24 * time.Hour)
)

func allowedMethods() []session.AllowedMethod {
	return []session.AllowedMethod{
		session.MethodByName(strkToken, "transfer", session.ExactValue(0, "0xb0b")),
		session.MethodByName("0x1234", "swap"),
	}
}

func spendingLimits() []session.SpendingLimit {
	return []session.SpendingLimit{
		{TokenAddress: strkToken, Amount: starknet.Uint256{Low: "1000000000000000000", High: "0"}},
	}
}

func sessionRequest() session.SessionSignatureRequest {
	return session.SessionSignatureRequest{
		OwnerPublicKey: "0x2a",
		SessionRequest: session.SessionRequest{
			TimeWindow:     session.TimeWindow{ExecuteAfter: windowStart, ExecuteBefore: windowEnd},
			AllowedMethods: allowedMethods(),
			StrkGasLimit:   "0x2540be400",
			SpendingLimits: spendingLimits(),
		},
	}
}

func gasSponsoredRequest() session.GasSponsoredRequest {
	return session.GasSponsoredRequest{
		CallerAddress:  "0xca11e4",
		TimeWindow:     session.TimeWindow{ExecuteAfter: windowStart, ExecuteBefore: windowEnd},
		AllowedMethods: allowedMethods(),
		SpendingLimits: spendingLimits(),
	}
}

func TestRequestSession(t *testing.T) {
	ctx := context.Background()
	req := sessionRequest()
	account := mocks.NewMockAccountForTest(t)
	account.EXPECT().Address().Return(ownerAddress).AnyTimes()

	expectedDoc, err := session.BuildSessionTypedData(req, "SN_SEPOLIA", session.V2)
	require.NoError(t, err)
	expectedHash, err := starknet.MessageHash(expectedDoc, ownerAddress)
	require.NoError(t, err)

	gomock.InOrder(
		account.EXPECT().ChainID(gomock.Any()).Return("SN_SEPOLIA", nil),
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, td starknet.TypedData) (session.Signature, error) {
				assert.Equal(t, "SessionExecution", td.PrimaryType)
				assert.Equal(t, "Account.execute_session", td.Domain.Name)
				assert.Equal(t, "3", td.Domain.Version)
				assert.Equal(t, "SN_SEPOLIA", td.Domain.ChainID)

				hash, err := starknet.MessageHash(td, ownerAddress)
				require.NoError(t, err)
				assert.True(t, expectedHash.Equal(hash))
				return session.Signature{"0x1", "0x2"}, nil
			}),
	)

	requester := session.NewRequester(account, session.WithLogger(zaptest.NewLogger(t)))
	grant, err := requester.RequestSession(ctx, req, session.V2)
	require.NoError(t, err)

	assert.Equal(t, session.Signature{"0x1", "0x2"}, grant.Signature)
	assert.Equal(t, req, grant.SessionSignatureRequest)
	assert.Equal(t, session.FlowSession, grant.Flow())
}

func TestRequestSessionOwnsItsSlices(t *testing.T) {
	req := sessionRequest()
	account := mocks.NewMockAccountForTest(t)
	account.EXPECT().Address().Return(ownerAddress).AnyTimes()
	account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
	account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(session.Signature{"0x1", "0x2"}, nil)

	grant, err := session.SignSessionRequest(context.Background(), account, req, session.V2)
	require.NoError(t, err)

	req.AllowedMethods[0].CalldataValidations[0].Value = "0xdead"
	req.SpendingLimits[0].TokenAddress = "0xdead"
	assert.Equal(t, "0xb0b", grant.AllowedMethods[0].CalldataValidations[0].Value)
	assert.Equal(t, strkToken, grant.SpendingLimits[0].TokenAddress)
}

func TestRequestGasSponsoredSession(t *testing.T) {
	req := gasSponsoredRequest()
	account := mocks.NewMockAccountForTest(t)
	account.EXPECT().Address().Return(ownerAddress).AnyTimes()

	gomock.InOrder(
		account.EXPECT().ChainID(gomock.Any()).Return("0x534e5f4d41494e", nil),
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, td starknet.TypedData) (session.Signature, error) {
				assert.Equal(t, "GasSponsoredSessionExecution", td.PrimaryType)
				assert.Equal(t, "Account.execute_gs_session", td.Domain.Name)
				assert.Equal(t, "2", td.Domain.Version)
				assert.Equal(t, "0xca11e4", td.Message["Caller"])
				return session.Signature{"0x3", "0x4"}, nil
			}),
	)

	grant, err := session.SignGasSponsoredSessionRequest(context.Background(), account, req, session.V1)
	require.NoError(t, err)
	assert.Equal(t, session.Signature{"0x3", "0x4"}, grant.Signature)
	assert.Equal(t, session.FlowGasSponsored, grant.Flow())
}

func TestRequestSessionFailures(t *testing.T) {
	ctx := context.Background()
	rpcErr := errors.New("connection refused")
	rejected := errors.New("user rejected request")

	t.Run("Chain id failure stops before signing", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("", rpcErr)

		_, err := session.NewRequester(account).RequestSession(ctx, sessionRequest(), session.V1)
		assert.ErrorIs(t, err, rpcErr)
	})

	t.Run("Signer failure keeps the cause", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(nil, rejected).Times(1)

		_, err := session.NewRequester(account).RequestGasSponsoredSession(ctx, gasSponsoredRequest(), session.V2)
		assert.ErrorIs(t, err, rejected)
		assert.ErrorIs(t, err, session.ErrSignerFailure)
		assert.Equal(t, session.ErrCodeSignerFailure, session.AsSessionError(err).Code)
	})

	t.Run("Empty signature", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(session.Signature{}, nil)

		_, err := session.NewRequester(account).RequestSession(ctx, sessionRequest(), session.V2)
		assert.ErrorIs(t, err, session.ErrMissingSignature)
	})

	t.Run("Invalid window fails without I/O", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		req := sessionRequest()
		req.ExecuteBefore = req.ExecuteAfter

		_, err := session.NewRequester(account).RequestSession(ctx, req, session.V1)
		assert.ErrorIs(t, err, session.ErrInvalidTimeWindow)
	})

	t.Run("Unresolvable method fails without I/O", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		req := gasSponsoredRequest()
		req.AllowedMethods = append(req.AllowedMethods, session.AllowedMethod{ContractAddress: "0x1"})

		_, err := session.NewRequester(account).RequestGasSponsoredSession(ctx, req, session.V1)
		assert.ErrorIs(t, err, session.ErrUnresolvableMethod)
	})

	t.Run("Unsupported version fails without I/O", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)

		_, err := session.NewRequester(account).RequestSession(ctx, sessionRequest(), session.ProtocolVersion("v3"))
		assert.ErrorIs(t, err, session.ErrUnsupportedVersion)
	})
}

func TestRequesterHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("Before hook can veto", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)

		var seen session.SignContext
		requester := session.NewRequester(account, session.WithBeforeSignHook(func(hc session.SignContext) (*session.BeforeHookResult, error) {
			seen = hc
			return &session.BeforeHookResult{Abort: true, Reason: "gas limit above policy"}, nil
		}))

		_, err := requester.RequestSession(ctx, sessionRequest(), session.V2)
		assert.ErrorIs(t, err, session.ErrSignAborted)
		assert.Contains(t, err.Error(), "gas limit above policy")
		assert.Equal(t, session.ErrCodeSignerFailure, session.AsSessionError(err).Code)
		assert.Equal(t, session.FlowSession, seen.Flow)
		assert.Equal(t, session.V2, seen.Version)
		assert.Equal(t, "SN_MAIN", seen.ChainID)
		assert.Equal(t, "SessionExecution", seen.TypedData.PrimaryType)
	})

	t.Run("Before hook error stops the request", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		policyDown := errors.New("policy service unavailable")

		requester := session.NewRequester(account, session.WithBeforeSignHook(func(session.SignContext) (*session.BeforeHookResult, error) {
			return nil, policyDown
		}))

		_, err := requester.RequestGasSponsoredSession(ctx, gasSponsoredRequest(), session.V1)
		assert.ErrorIs(t, err, policyDown)
	})

	t.Run("After hook sees the signature and cannot fail the request", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(session.Signature{"0x1", "0x2"}, nil)

		var got session.Signature
		requester := session.NewRequester(account,
			session.WithLogger(zaptest.NewLogger(t)),
			session.WithAfterSignHook(func(rc session.SignResultContext) error {
				got = rc.Signature
				return errors.New("audit log full")
			}),
		)

		grant, err := requester.RequestSession(ctx, sessionRequest(), session.V1)
		require.NoError(t, err)
		assert.Equal(t, session.Signature{"0x1", "0x2"}, got)
		assert.Equal(t, got, grant.Signature)
	})

	t.Run("Failure hook can recover", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(nil, errors.New("hardware wallet locked"))

		var failure error
		requester := session.NewRequester(account, session.WithOnSignFailureHook(func(fc session.SignFailureContext) (*session.SignFailureHookResult, error) {
			failure = fc.Error
			return &session.SignFailureHookResult{Recovered: true, Signature: session.Signature{"0xfa", "0x11"}}, nil
		}))

		grant, err := requester.RequestGasSponsoredSession(ctx, gasSponsoredRequest(), session.V2)
		require.NoError(t, err)
		assert.ErrorIs(t, failure, session.ErrSignerFailure)
		assert.Equal(t, session.Signature{"0xfa", "0x11"}, grant.Signature)
	})

	t.Run("Failure hook without recovery keeps the error", func(t *testing.T) {
		account := mocks.NewMockAccountForTest(t)
		account.EXPECT().Address().Return(ownerAddress).AnyTimes()
		account.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)
		account.EXPECT().SignMessage(gomock.Any(), gomock.Any()).Return(session.Signature{}, nil)

		calls := 0
		requester := session.NewRequester(account, session.WithOnSignFailureHook(func(session.SignFailureContext) (*session.SignFailureHookResult, error) {
			calls++
			return nil, nil
		}))

		_, err := requester.RequestSession(ctx, sessionRequest(), session.V2)
		assert.ErrorIs(t, err, session.ErrMissingSignature)
		assert.Equal(t, 1, calls)
	})
}
