package session

import (
	"context"
	"fmt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// Session account entrypoints
const (
	SessionExecuteEntrypoint = "session_execute"
	GasSponsoredEntrypointV1 = "execute_gas_sponsored_session_tx"
	GasSponsoredEntrypointV2 = "execute_gas_sponsored_session_tx_v2"
)

// BuildSessionExecuteCall builds the session_execute call that must precede calls
// in the same multicall:
//
//	calldata = [ownerPublicKey, Encode(grant, calls, version)...]
func (e *Encoder) BuildSessionExecuteCall(accountAddress string, grant SessionGrant, calls []starknet.Call, version ProtocolVersion) (starknet.Call, error) {
	ownerKey, err := starknet.ToFelt(grant.OwnerPublicKey)
	if err != nil {
		return starknet.Call{}, fmt.Errorf("invalid owner public key %q: %w", grant.OwnerPublicKey, err)
	}
	encoded, err := e.Encode(grant, calls, version)
	if err != nil {
		return starknet.Call{}, err
	}

	calldata := make([]string, 0, 1+len(encoded))
	calldata = append(calldata, ownerKey.String())
	calldata = append(calldata, starknet.FeltsToHex(encoded)...)
	return starknet.Call{
		ContractAddress: accountAddress,
		Entrypoint:      SessionExecuteEntrypoint,
		Calldata:        calldata,
	}, nil
}

// BuildGasSponsoredCall builds the single call a sponsoring caller submits in place
// of calls. The entrypoint depends on the version.
func (e *Encoder) BuildGasSponsoredCall(sessionAccountAddress string, grant GasSponsoredGrant, calls []starknet.Call, version ProtocolVersion) (starknet.Call, error) {
	vp, err := profileFor(version)
	if err != nil {
		return starknet.Call{}, err
	}
	encoded, err := e.Encode(grant, calls, version)
	if err != nil {
		return starknet.Call{}, err
	}
	return starknet.Call{
		ContractAddress: sessionAccountAddress,
		Entrypoint:      vp.gasSponsoredEntrypoint,
		Calldata:        starknet.FeltsToHex(encoded),
	}, nil
}

// BuildSessionExecuteCall builds a session_execute call with the default encoder
func BuildSessionExecuteCall(accountAddress string, grant SessionGrant, calls []starknet.Call, version ProtocolVersion) (starknet.Call, error) {
	return defaultEncoder.BuildSessionExecuteCall(accountAddress, grant, calls, version)
}

// BuildGasSponsoredCall builds a gas-sponsored session call with the default encoder
func BuildGasSponsoredCall(sessionAccountAddress string, grant GasSponsoredGrant, calls []starknet.Call, version ProtocolVersion) (starknet.Call, error) {
	return defaultEncoder.BuildGasSponsoredCall(sessionAccountAddress, grant, calls, version)
}

// SessionAccount executes calls under a session grant by prepending the
// session_execute call to every multicall it forwards to the wrapped executor.
// The executor signs with the session key, not the owner key.
type SessionAccount struct {
	executor CallExecutor
	grant    SessionGrant
	version  ProtocolVersion
	encoder  *Encoder
	cache    *ExecutionCache
}

// SessionAccountOption configures a SessionAccount
type SessionAccountOption func(*SessionAccount)

// WithEncoder sets the encoder used to build session_execute calls
func WithEncoder(encoder *Encoder) SessionAccountOption {
	return func(a *SessionAccount) {
		if encoder != nil {
			a.encoder = encoder
		}
	}
}

// WithExecutionCache deduplicates submissions of identical multicalls
func WithExecutionCache(cache *ExecutionCache) SessionAccountOption {
	return func(a *SessionAccount) {
		a.cache = cache
	}
}

// NewSessionAccount wraps executor so that its calls are authorized by grant
func NewSessionAccount(executor CallExecutor, grant SessionGrant, version ProtocolVersion, opts ...SessionAccountOption) (*SessionAccount, error) {
	if executor == nil {
		return nil, fmt.Errorf("session account requires a call executor")
	}
	if _, err := profileFor(version); err != nil {
		return nil, err
	}
	if len(grant.Signature) == 0 {
		return nil, ErrMissingSignature
	}
	a := &SessionAccount{
		executor: executor,
		grant:    grant,
		version:  version,
		encoder:  defaultEncoder,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Address returns the session account address
func (a *SessionAccount) Address() string {
	return a.executor.Address()
}

// Grant returns the grant the account redeems
func (a *SessionAccount) Grant() SessionGrant {
	return a.grant
}

// SessionCalls returns calls preceded by the session_execute call authorizing them
func (a *SessionAccount) SessionCalls(calls []starknet.Call) ([]starknet.Call, error) {
	sessionCall, err := a.encoder.BuildSessionExecuteCall(a.executor.Address(), a.grant, calls, a.version)
	if err != nil {
		return nil, err
	}
	out := make([]starknet.Call, 0, 1+len(calls))
	out = append(out, sessionCall)
	return append(out, calls...), nil
}

// Execute submits calls under the session grant. With an execution cache, a
// multicall already submitted returns its cached transaction hash.
func (a *SessionAccount) Execute(ctx context.Context, calls []starknet.Call) (string, error) {
	sessionCalls, err := a.SessionCalls(calls)
	if err != nil {
		return "", err
	}
	if a.cache == nil {
		return a.executor.Execute(ctx, sessionCalls)
	}

	key, err := ExecutionKey(sessionCalls)
	if err != nil {
		return "", err
	}
	for {
		status, txHash, done := a.cache.CheckAndMark(key)
		switch status {
		case ExecutionCached:
			return txHash, nil
		case ExecutionInFlight:
			txHash, ok, err := a.cache.Wait(ctx, key, done)
			if err != nil {
				return "", err
			}
			if ok {
				return txHash, nil
			}
			// the owner failed; try to take over
			continue
		}

		return a.executeOwned(ctx, key, sessionCalls, done)
	}
}

// executeOwned submits calls for a key this caller marked in flight. The key is
// released on every exit, panics included, so waiters never block on it.
func (a *SessionAccount) executeOwned(ctx context.Context, key string, calls []starknet.Call, done chan struct{}) (string, error) {
	completed := false
	defer func() {
		if !completed {
			a.cache.Fail(key, done)
		}
	}()

	txHash, err := a.executor.Execute(ctx, calls)
	if err != nil {
		return "", err
	}
	a.cache.Complete(key, txHash, done)
	completed = true
	return txHash, nil
}

// EstimateFee estimates calls as they will be submitted, session_execute included
func (a *SessionAccount) EstimateFee(ctx context.Context, calls []starknet.Call) (*FeeEstimate, error) {
	sessionCalls, err := a.SessionCalls(calls)
	if err != nil {
		return nil, err
	}
	return a.executor.EstimateFee(ctx, sessionCalls)
}
