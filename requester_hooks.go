package session

import (
	"context"
	"time"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// SignContext describes a grant about to be signed
type SignContext struct {
	Ctx       context.Context
	Flow      Flow
	Version   ProtocolVersion
	ChainID   string
	TypedData starknet.TypedData
	Timestamp time.Time
}

// SignResultContext carries a successful signature
type SignResultContext struct {
	SignContext
	Signature Signature
	Duration  time.Duration
}

// SignFailureContext carries a signing failure
type SignFailureContext struct {
	SignContext
	Error    error
	Duration time.Duration
}

// BeforeHookResult aborts signing when Abort is true
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// SignFailureHookResult replaces the failure with Signature when Recovered is true
type SignFailureHookResult struct {
	Recovered bool
	Signature Signature
}

// BeforeSignHook runs after the typed data is built and before the account is asked to sign.
// Returning an error or an aborting result stops the request before any signature is produced.
type BeforeSignHook func(SignContext) (*BeforeHookResult, error)

// AfterSignHook runs after a successful signature. Errors are logged and ignored.
type AfterSignHook func(SignResultContext) error

// OnSignFailureHook runs when the account fails to produce a signature
type OnSignFailureHook func(SignFailureContext) (*SignFailureHookResult, error)

// WithBeforeSignHook registers a hook run before each signature request
func WithBeforeSignHook(hook BeforeSignHook) RequesterOption {
	return func(r *Requester) {
		r.beforeSignHooks = append(r.beforeSignHooks, hook)
	}
}

// WithAfterSignHook registers a hook run after each successful signature
func WithAfterSignHook(hook AfterSignHook) RequesterOption {
	return func(r *Requester) {
		r.afterSignHooks = append(r.afterSignHooks, hook)
	}
}

// WithOnSignFailureHook registers a hook run when signing fails
func WithOnSignFailureHook(hook OnSignFailureHook) RequesterOption {
	return func(r *Requester) {
		r.onSignFailureHooks = append(r.onSignFailureHooks, hook)
	}
}
