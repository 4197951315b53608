package session

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// Requester obtains signed grants from an account.
// It performs exactly two external calls per request, chain id then signature,
// and never retries either.
type Requester struct {
	account Account
	logger  *zap.Logger

	beforeSignHooks    []BeforeSignHook
	afterSignHooks     []AfterSignHook
	onSignFailureHooks []OnSignFailureHook
}

// RequesterOption configures the requester
type RequesterOption func(*Requester)

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) RequesterOption {
	return func(r *Requester) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRequester creates a requester signing through account
func NewRequester(account Account, opts ...RequesterOption) *Requester {
	r := &Requester{
		account: account,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequestSession asks the account owner to authorize a session key.
// The returned grant owns copies of the request's slices.
func (r *Requester) RequestSession(ctx context.Context, req SessionSignatureRequest, version ProtocolVersion) (*SessionGrant, error) {
	if _, err := profileFor(version); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	signature, err := r.sign(ctx, FlowSession, version, func(chainID string) (starknet.TypedData, error) {
		return BuildSessionTypedData(req, chainID, version)
	})
	if err != nil {
		return nil, err
	}

	req.AllowedMethods = cloneMethods(req.AllowedMethods)
	req.SpendingLimits = slices.Clone(req.SpendingLimits)
	return &SessionGrant{
		SessionSignatureRequest: req,
		Signature:               signature,
	}, nil
}

// RequestGasSponsoredSession asks the account owner to let req.CallerAddress
// execute calls on its behalf.
func (r *Requester) RequestGasSponsoredSession(ctx context.Context, req GasSponsoredRequest, version ProtocolVersion) (*GasSponsoredGrant, error) {
	if _, err := profileFor(version); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	signature, err := r.sign(ctx, FlowGasSponsored, version, func(chainID string) (starknet.TypedData, error) {
		return BuildGasSponsoredTypedData(req, chainID, version)
	})
	if err != nil {
		return nil, err
	}

	req.AllowedMethods = cloneMethods(req.AllowedMethods)
	req.SpendingLimits = slices.Clone(req.SpendingLimits)
	return &GasSponsoredGrant{
		GasSponsoredRequest: req,
		Signature:           signature,
	}, nil
}

func (r *Requester) sign(ctx context.Context, flow Flow, version ProtocolVersion, build func(chainID string) (starknet.TypedData, error)) (Signature, error) {
	logger := r.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("flow", string(flow)),
		zap.String("version", string(version)),
		zap.String("account", r.account.Address()),
	)

	chainID, err := r.account.ChainID(ctx)
	if err != nil {
		logger.Error("failed to fetch chain id", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	td, err := build(chainID)
	if err != nil {
		return nil, err
	}

	hookCtx := SignContext{
		Ctx:       ctx,
		Flow:      flow,
		Version:   version,
		ChainID:   chainID,
		TypedData: td,
		Timestamp: time.Now(),
	}
	for _, hook := range r.beforeSignHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, fmt.Errorf("before sign hook failed: %w", err)
		}
		if result != nil && result.Abort {
			logger.Info("grant signing aborted", zap.String("reason", result.Reason))
			return nil, fmt.Errorf("%w: %s", ErrSignAborted, result.Reason)
		}
	}

	logger.Debug("requesting grant signature", zap.String("chain_id", chainID))
	signature, err := r.account.SignMessage(ctx, td)
	switch {
	case err != nil:
		logger.Error("failed to sign grant", zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSignerFailure, err)
	case len(signature) == 0:
		err = fmt.Errorf("account returned an empty signature: %w", ErrMissingSignature)
	}
	duration := time.Since(hookCtx.Timestamp)

	if err != nil {
		for _, hook := range r.onSignFailureHooks {
			result, hookErr := hook(SignFailureContext{SignContext: hookCtx, Error: err, Duration: duration})
			if hookErr != nil {
				logger.Warn("sign failure hook failed", zap.Error(hookErr))
				continue
			}
			if result != nil && result.Recovered && len(result.Signature) > 0 {
				logger.Info("grant signature recovered by hook")
				signature, err = result.Signature, nil
				break
			}
		}
		if err != nil {
			return nil, err
		}
	}

	for _, hook := range r.afterSignHooks {
		if hookErr := hook(SignResultContext{SignContext: hookCtx, Signature: slices.Clone(signature), Duration: duration}); hookErr != nil {
			logger.Warn("after sign hook failed", zap.Error(hookErr))
		}
	}

	logger.Info("grant signed", zap.Int("signature_len", len(signature)))
	return slices.Clone(signature), nil
}

// SignSessionRequest is a convenience wrapper around Requester.RequestSession
func SignSessionRequest(ctx context.Context, account Account, req SessionSignatureRequest, version ProtocolVersion) (*SessionGrant, error) {
	return NewRequester(account).RequestSession(ctx, req, version)
}

// SignGasSponsoredSessionRequest is a convenience wrapper around
// Requester.RequestGasSponsoredSession
func SignGasSponsoredSessionRequest(ctx context.Context, account Account, req GasSponsoredRequest, version ProtocolVersion) (*GasSponsoredGrant, error) {
	return NewRequester(account).RequestGasSponsoredSession(ctx, req, version)
}
