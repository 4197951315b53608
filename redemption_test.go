package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	session "github.com/sessionkeys/starknet-session/go"
	"github.com/sessionkeys/starknet-session/go/internal/mocks"
	"github.com/sessionkeys/starknet-session/go/starknet"
)

const sessionAccountAddress = "0x5e55"

func sessionGrant() session.SessionGrant {
	return session.SessionGrant{
		SessionSignatureRequest: sessionRequest(),
		Signature:               session.Signature{"0x1", "0x2"},
	}
}

func gasSponsoredGrant() session.GasSponsoredGrant {
	return session.GasSponsoredGrant{
		GasSponsoredRequest: gasSponsoredRequest(),
		Signature:           session.Signature{"0x3", "0x4"},
	}
}

func userCalls() []starknet.Call {
	return []starknet.Call{
		{ContractAddress: strkToken, Entrypoint: "transfer", Calldata: []string{"0xb0b", "0x64", "0x0"}},
		{ContractAddress: "0x1234", Entrypoint: "swap", Calldata: []string{"0x1"}},
	}
}

func TestBuildSessionExecuteCall(t *testing.T) {
	for _, version := range []session.ProtocolVersion{session.V1, session.V2} {
		t.Run(string(version), func(t *testing.T) {
			grant := sessionGrant()
			call, err := session.BuildSessionExecuteCall(sessionAccountAddress, grant, userCalls(), version)
			require.NoError(t, err)

			encoded, err := session.Encode(grant, userCalls(), version)
			require.NoError(t, err)

			assert.Equal(t, sessionAccountAddress, call.ContractAddress)
			assert.Equal(t, session.SessionExecuteEntrypoint, call.Entrypoint)
			assert.Equal(t, append([]string{"0x2a"}, starknet.FeltsToHex(encoded)...), call.Calldata)
		})
	}

	t.Run("Malformed owner key", func(t *testing.T) {
		grant := sessionGrant()
		grant.OwnerPublicKey = "owner"
		_, err := session.BuildSessionExecuteCall(sessionAccountAddress, grant, userCalls(), session.V1)
		assert.ErrorIs(t, err, session.ErrMalformedNumber)
	})
}

func TestBuildGasSponsoredCall(t *testing.T) {
	tests := []struct {
		version    session.ProtocolVersion
		entrypoint string
	}{
		{session.V1, "execute_gas_sponsored_session_tx"},
		{session.V2, "execute_gas_sponsored_session_tx_v2"},
	}
	for _, tt := range tests {
		t.Run(string(tt.version), func(t *testing.T) {
			grant := gasSponsoredGrant()
			call, err := session.BuildGasSponsoredCall(sessionAccountAddress, grant, userCalls(), tt.version)
			require.NoError(t, err)

			encoded, err := session.Encode(grant, userCalls(), tt.version)
			require.NoError(t, err)

			assert.Equal(t, sessionAccountAddress, call.ContractAddress)
			assert.Equal(t, tt.entrypoint, call.Entrypoint)
			assert.Equal(t, starknet.FeltsToHex(encoded), call.Calldata)
		})
	}

	t.Run("Unsigned grant", func(t *testing.T) {
		grant := gasSponsoredGrant()
		grant.Signature = nil
		_, err := session.BuildGasSponsoredCall(sessionAccountAddress, grant, userCalls(), session.V2)
		assert.ErrorIs(t, err, session.ErrMissingSignature)
	})
}

func TestSessionAccount(t *testing.T) {
	ctx := context.Background()
	grant := sessionGrant()
	expectedSessionCall, err := session.BuildSessionExecuteCall(sessionAccountAddress, grant, userCalls(), session.V2)
	require.NoError(t, err)
	expectedCalls := append([]starknet.Call{expectedSessionCall}, userCalls()...)

	t.Run("Execute prepends session_execute", func(t *testing.T) {
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		executor.EXPECT().Execute(gomock.Any(), expectedCalls).Return("0x7ab", nil)

		account, err := session.NewSessionAccount(executor, grant, session.V2)
		require.NoError(t, err)
		assert.Equal(t, sessionAccountAddress, account.Address())
		assert.Equal(t, grant, account.Grant())

		txHash, err := account.Execute(ctx, userCalls())
		require.NoError(t, err)
		assert.Equal(t, "0x7ab", txHash)
	})

	t.Run("EstimateFee prepends session_execute", func(t *testing.T) {
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		executor.EXPECT().EstimateFee(gomock.Any(), expectedCalls).
			Return(&session.FeeEstimate{OverallFee: "0x100", Unit: "FRI"}, nil)

		account, err := session.NewSessionAccount(executor, grant, session.V2)
		require.NoError(t, err)

		fee, err := account.EstimateFee(ctx, userCalls())
		require.NoError(t, err)
		assert.Equal(t, "0x100", fee.OverallFee)
	})

	t.Run("Executor failure surfaces unchanged", func(t *testing.T) {
		rejected := errors.New("insufficient balance")
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return("", rejected)

		account, err := session.NewSessionAccount(executor, grant, session.V2)
		require.NoError(t, err)

		_, err = account.Execute(ctx, userCalls())
		assert.ErrorIs(t, err, rejected)
	})

	t.Run("Execution cache submits a retried multicall once", func(t *testing.T) {
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		executor.EXPECT().Execute(gomock.Any(), expectedCalls).Return("0x7ab", nil).Times(1)

		account, err := session.NewSessionAccount(executor, grant, session.V2,
			session.WithExecutionCache(session.NewExecutionCache(time.Minute)))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			txHash, err := account.Execute(ctx, userCalls())
			require.NoError(t, err)
			assert.Equal(t, "0x7ab", txHash)
		}
	})

	t.Run("Execution cache allows retry after failure", func(t *testing.T) {
		rejected := errors.New("nonce too low")
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		gomock.InOrder(
			executor.EXPECT().Execute(gomock.Any(), expectedCalls).Return("", rejected),
			executor.EXPECT().Execute(gomock.Any(), expectedCalls).Return("0x7ac", nil),
		)

		account, err := session.NewSessionAccount(executor, grant, session.V2,
			session.WithExecutionCache(session.NewExecutionCache(time.Minute)))
		require.NoError(t, err)

		_, err = account.Execute(ctx, userCalls())
		assert.ErrorIs(t, err, rejected)
		txHash, err := account.Execute(ctx, userCalls())
		require.NoError(t, err)
		assert.Equal(t, "0x7ac", txHash)
	})

	t.Run("Execution cache releases the key when the executor panics", func(t *testing.T) {
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()
		gomock.InOrder(
			executor.EXPECT().Execute(gomock.Any(), expectedCalls).
				DoAndReturn(func(context.Context, []starknet.Call) (string, error) {
					panic("rpc client crashed")
				}),
			executor.EXPECT().Execute(gomock.Any(), expectedCalls).Return("0x7ad", nil),
		)

		cache := session.NewExecutionCache(time.Minute)
		account, err := session.NewSessionAccount(executor, grant, session.V2, session.WithExecutionCache(cache))
		require.NoError(t, err)

		assert.Panics(t, func() {
			_, _ = account.Execute(ctx, userCalls())
		})

		key, err := session.ExecutionKey(expectedCalls)
		require.NoError(t, err)
		status, _, done := cache.CheckAndMark(key)
		require.Equal(t, session.ExecutionNotFound, status)
		cache.Fail(key, done)

		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		txHash, err := account.Execute(waitCtx, userCalls())
		require.NoError(t, err)
		assert.Equal(t, "0x7ad", txHash)
	})

	t.Run("Custom encoder", func(t *testing.T) {
		compiled := false
		encoder := session.NewEncoder(session.WithCallCompiler(func(calls []starknet.Call) ([]*felt.Felt, error) {
			compiled = true
			return starknet.CompileExecuteCalldata(calls)
		}))
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()

		account, err := session.NewSessionAccount(executor, grant, session.V2, session.WithEncoder(encoder))
		require.NoError(t, err)

		calls, err := account.SessionCalls(userCalls())
		require.NoError(t, err)
		assert.Equal(t, expectedCalls, calls)
		// session_execute carries no forwarded calls
		assert.False(t, compiled)
	})

	t.Run("Encoding failure never reaches the executor", func(t *testing.T) {
		broken := sessionGrant()
		broken.StrkGasLimit = "lots"
		executor := mocks.NewMockCallExecutorForTest(t)
		executor.EXPECT().Address().Return(sessionAccountAddress).AnyTimes()

		account, err := session.NewSessionAccount(executor, broken, session.V1)
		require.NoError(t, err)

		_, err = account.Execute(ctx, userCalls())
		assert.ErrorIs(t, err, session.ErrMalformedNumber)
		_, err = account.EstimateFee(ctx, userCalls())
		assert.ErrorIs(t, err, session.ErrMalformedNumber)
	})
}

func TestNewSessionAccountErrors(t *testing.T) {
	executor := mocks.NewMockCallExecutorForTest(t)

	_, err := session.NewSessionAccount(nil, sessionGrant(), session.V1)
	assert.Error(t, err)

	unsigned := sessionGrant()
	unsigned.Signature = nil
	_, err = session.NewSessionAccount(executor, unsigned, session.V1)
	assert.ErrorIs(t, err, session.ErrMissingSignature)

	_, err = session.NewSessionAccount(executor, sessionGrant(), session.ProtocolVersion("2"))
	assert.ErrorIs(t, err, session.ErrUnsupportedVersion)
}
