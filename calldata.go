package session

import (
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// Encoder serializes grants and calls into the redemption calldata expected by
// session accounts
type Encoder struct {
	compileCalls CallCompiler
}

// EncoderOption configures the encoder
type EncoderOption func(*Encoder)

// WithCallCompiler replaces the Cairo 1 call-array compiler used for the
// forwarded calls of gas-sponsored grants
func WithCallCompiler(compiler CallCompiler) EncoderOption {
	return func(e *Encoder) {
		if compiler != nil {
			e.compileCalls = compiler
		}
	}
}

// NewEncoder creates a new calldata encoder
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{
		compileCalls: starknet.CompileExecuteCalldata,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder = NewEncoder()

// Encode serializes grant and calls with the default encoder
func Encode(grant Grant, calls []starknet.Call, version ProtocolVersion) ([]*felt.Felt, error) {
	return defaultEncoder.Encode(grant, calls, version)
}

// Encode serializes grant and calls into one flat felt sequence:
//
//	executeAfter, executeBefore
//	len(methods), guid...
//	strkGasLimit                                     session flow only
//	len(limits), (token, low, high)...
//	len(methods), (len(validations), (offset, value, type)...)...   V2 only
//	forwarded calls                                  gas-sponsored flow only
//	len(calls), hint...
//	len(signature), signature...
//
// The version must be the one the grant was signed under.
func (e *Encoder) Encode(grant Grant, calls []starknet.Call, version ProtocolVersion) ([]*felt.Felt, error) {
	if isNilGrant(grant) {
		return nil, ErrNilGrant
	}
	fp, vp, err := profiles(grant.Flow(), version)
	if err != nil {
		return nil, err
	}
	window := grant.window()
	if err := window.Validate(); err != nil {
		return nil, err
	}
	signature, err := grant.signature().Felts()
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	if len(signature) == 0 {
		return nil, ErrMissingSignature
	}

	methods := grant.methods()
	after, before := window.Seconds()
	out := []*felt.Felt{
		starknet.FeltFromUint64(uint64(after)),
		starknet.FeltFromUint64(uint64(before)),
	}

	guids, err := CommitMethods(methods, version)
	if err != nil {
		return nil, err
	}
	out = appendCounted(out, guids)

	if fp.withGasLimit {
		gasLimit, err := starknet.ToUint128(grant.gasLimit())
		if err != nil {
			return nil, fmt.Errorf("invalid STRK gas limit %q: %w", grant.gasLimit(), err)
		}
		out = append(out, gasLimit)
	}

	limits, err := encodeSpendingLimits(grant.limits())
	if err != nil {
		return nil, err
	}
	out = append(out, limits...)

	if vp.withValidations {
		validations, err := encodeValidations(methods)
		if err != nil {
			return nil, err
		}
		out = append(out, validations...)
	}

	if fp.withForwardedCalls {
		compiled, err := e.compileCalls(calls)
		if err != nil {
			return nil, fmt.Errorf("failed to compile calls: %w", err)
		}
		out = append(out, compiled...)
	}

	out = append(out, encodeHints(ResolveHints(methods, calls))...)
	out = appendCounted(out, signature)
	return out, nil
}

func appendCounted(out []*felt.Felt, elems []*felt.Felt) []*felt.Felt {
	out = append(out, starknet.FeltFromUint64(uint64(len(elems))))
	return append(out, elems...)
}

func encodeSpendingLimits(limits []SpendingLimit) ([]*felt.Felt, error) {
	out := make([]*felt.Felt, 0, 1+3*len(limits))
	out = append(out, starknet.FeltFromUint64(uint64(len(limits))))
	for i, limit := range limits {
		token, err := starknet.ToFelt(limit.TokenAddress)
		if err != nil {
			return nil, fmt.Errorf("spending limit %d: %w", i, err)
		}
		low, high, err := limit.Amount.Felts()
		if err != nil {
			return nil, fmt.Errorf("spending limit %d: %w", i, err)
		}
		out = append(out, token, low, high)
	}
	return out, nil
}

func encodeValidations(methods []AllowedMethod) ([]*felt.Felt, error) {
	out := []*felt.Felt{starknet.FeltFromUint64(uint64(len(methods)))}
	for i, m := range methods {
		out = append(out, starknet.FeltFromUint64(uint64(len(m.CalldataValidations))))
		for j, v := range m.CalldataValidations {
			value, err := starknet.ToFelt(v.Value)
			if err != nil {
				return nil, fmt.Errorf("allowed method %d calldata validation %d: %w", i, j, err)
			}
			out = append(out,
				starknet.FeltFromUint64(v.Offset),
				value,
				starknet.FeltFromUint64(uint64(v.ValidationType)),
			)
		}
	}
	return out, nil
}

// hintNotFoundFelt is -1 in the field, the verifier's encoding of HintNotFound.
var hintNotFoundFelt = func() *felt.Felt {
	f, err := starknet.FeltFromBig(new(big.Int).Sub(starknet.FieldPrime, big.NewInt(1)))
	if err != nil {
		panic(err)
	}
	return f
}()

func encodeHints(hints []int) []*felt.Felt {
	out := make([]*felt.Felt, 0, 1+len(hints))
	out = append(out, starknet.FeltFromUint64(uint64(len(hints))))
	for _, h := range hints {
		if h == HintNotFound {
			out = append(out, hintNotFoundFelt)
			continue
		}
		out = append(out, starknet.FeltFromUint64(uint64(h)))
	}
	return out
}

func isNilGrant(grant Grant) bool {
	switch g := grant.(type) {
	case nil:
		return true
	case *SessionGrant:
		return g == nil
	case *GasSponsoredGrant:
		return g == nil
	}
	return false
}
