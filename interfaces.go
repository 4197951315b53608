package session

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

//go:generate mockgen -source=interfaces.go -destination=internal/mocks/mock_interfaces.go -package=mocks

// Account is the owner (session flow) or caller (gas-sponsored flow) account whose
// signature authorizes a grant.
type Account interface {
	// Address returns the account contract address
	Address() string

	// ChainID returns the chain id of the network the account's provider is connected to,
	// as a hex string or short string (e.g. "SN_SEPOLIA")
	ChainID(ctx context.Context) (string, error)

	// SignMessage signs SNIP-12 typed data and returns the flat signature components
	SignMessage(ctx context.Context, typedData starknet.TypedData) (Signature, error)
}

// CallExecutor submits multicalls from an account.
//
// Cancellation, retries and fee settings belong to the implementation.
type CallExecutor interface {
	// Address returns the address calls are executed from
	Address() string

	// Execute submits calls as one invoke transaction and returns its hash
	Execute(ctx context.Context, calls []starknet.Call) (string, error)

	// EstimateFee estimates the fee of executing calls
	EstimateFee(ctx context.Context, calls []starknet.Call) (*FeeEstimate, error)
}

// FeeEstimate is the fee estimate returned by a CallExecutor
type FeeEstimate struct {
	OverallFee string `json:"overallFee"`
	Unit       string `json:"unit"`
}

// CallCompiler flattens forwarded calls into the account's call-array layout.
type CallCompiler func(calls []starknet.Call) ([]*felt.Felt, error)
