package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// TimeWindow bounds when a grant may be redeemed
type TimeWindow struct {
	ExecuteAfter  time.Time `json:"executeAfter"`
	ExecuteBefore time.Time `json:"executeBefore"`
}

// Seconds returns both bounds as whole seconds since epoch, rounded to the nearest second.
func (w TimeWindow) Seconds() (after int64, before int64) {
	return w.ExecuteAfter.Round(time.Second).Unix(), w.ExecuteBefore.Round(time.Second).Unix()
}

// Validate checks that the window is non-empty once encoded in seconds.
func (w TimeWindow) Validate() error {
	after, before := w.Seconds()
	if after < 0 {
		return fmt.Errorf("%w: executeAfter %d is before epoch", ErrInvalidTimeWindow, after)
	}
	if after >= before {
		return fmt.Errorf("%w: executeAfter %d is not before executeBefore %d", ErrInvalidTimeWindow, after, before)
	}
	return nil
}

// ValidationTypeExactValue requires the call argument at Offset to equal Value.
const ValidationTypeExactValue uint32 = 0

// CalldataValidation constrains one argument of calls made under an allowed method (V2 only)
type CalldataValidation struct {
	ValidationType uint32 `json:"validationType"`
	Offset         uint64 `json:"offset"`
	Value          string `json:"value"`
}

// ExactValue builds a validation pinning the argument at offset to value.
func ExactValue(offset uint64, value string) CalldataValidation {
	return CalldataValidation{
		ValidationType: ValidationTypeExactValue,
		Offset:         offset,
		Value:          value,
	}
}

// satisfiedBy reports whether calldata honours the validation.
func (v CalldataValidation) satisfiedBy(calldata []string) bool {
	if v.ValidationType != ValidationTypeExactValue {
		return false
	}
	if v.Offset >= uint64(len(calldata)) {
		return false
	}
	return starknet.HexEqual(v.Value, calldata[v.Offset])
}

// AllowedMethod is one (contract, entrypoint) pair a grant authorizes.
//
// A method is identified either by Entrypoint or by Selector; use MethodByName or
// MethodBySelector to build one. CalldataValidations is only committed to under V2.
type AllowedMethod struct {
	ContractAddress     string               `json:"contractAddress"`
	Entrypoint          string               `json:"entrypoint,omitempty"`
	Selector            string               `json:"selector,omitempty"`
	CalldataValidations []CalldataValidation `json:"calldataValidations"`
}

// MethodByName allows calls to entrypoint on contract.
func MethodByName(contract, entrypoint string, validations ...CalldataValidation) AllowedMethod {
	return AllowedMethod{
		ContractAddress:     contract,
		Entrypoint:          entrypoint,
		CalldataValidations: append([]CalldataValidation{}, validations...),
	}
}

// MethodBySelector allows calls to the entrypoint with the given selector on contract.
func MethodBySelector(contract, selector string, validations ...CalldataValidation) AllowedMethod {
	return AllowedMethod{
		ContractAddress:     contract,
		Selector:            selector,
		CalldataValidations: append([]CalldataValidation{}, validations...),
	}
}

// ResolveSelector returns the method's selector. An explicit Selector takes
// precedence; otherwise the selector is derived from Entrypoint.
func (m AllowedMethod) ResolveSelector() (*felt.Felt, error) {
	switch {
	case m.Selector != "" && m.Entrypoint != "":
		selector, err := starknet.ToFelt(m.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector for %s: %w", m.Entrypoint, err)
		}
		if !selector.Equal(starknet.SelectorFromName(m.Entrypoint)) {
			return nil, fmt.Errorf("%w: %s is not the selector of %s", ErrAmbiguousMethod, m.Selector, m.Entrypoint)
		}
		return selector, nil
	case m.Selector != "":
		selector, err := starknet.ToFelt(m.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector: %w", err)
		}
		return selector, nil
	case m.Entrypoint != "":
		return starknet.SelectorFromName(m.Entrypoint), nil
	default:
		return nil, fmt.Errorf("%w: contract %s", ErrUnresolvableMethod, m.ContractAddress)
	}
}

func (m AllowedMethod) clone() AllowedMethod {
	m.CalldataValidations = slices.Clone(m.CalldataValidations)
	return m
}

// SpendingLimit caps how much of a token calls under the grant may move.
type SpendingLimit struct {
	TokenAddress string           `json:"tokenAddress"`
	Amount       starknet.Uint256 `json:"amount"`
}

// Signature is the flat list of signature components produced by an account,
// typically [r, s].
type Signature []string

// SignatureFromFelts builds a Signature from raw components.
func SignatureFromFelts(components ...*felt.Felt) Signature {
	return Signature(starknet.FeltsToHex(components))
}

// Felts converts every component into a felt.
func (s Signature) Felts() ([]*felt.Felt, error) {
	out := make([]*felt.Felt, len(s))
	for i, component := range s {
		f, err := starknet.ToFelt(component)
		if err != nil {
			return nil, fmt.Errorf("signature[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// SessionRequest is what a session account asks its owner to authorize.
type SessionRequest struct {
	TimeWindow
	AllowedMethods []AllowedMethod `json:"allowedMethods"`
	StrkGasLimit   string          `json:"strkGasLimit"`
	SpendingLimits []SpendingLimit `json:"spendingLimits"`
}

// SessionSignatureRequest binds a SessionRequest to the session key that will redeem it.
type SessionSignatureRequest struct {
	OwnerPublicKey string `json:"ownerPublicKey"`
	SessionRequest
}

// SessionGrant is a SessionSignatureRequest signed by the account owner.
// Changing any field invalidates the signature.
type SessionGrant struct {
	SessionSignatureRequest
	Signature Signature `json:"signature"`
}

// GasSponsoredRequest authorizes CallerAddress to execute calls on the account's behalf.
type GasSponsoredRequest struct {
	CallerAddress string `json:"callerAddress"`
	TimeWindow
	AllowedMethods []AllowedMethod `json:"allowedMethods"`
	SpendingLimits []SpendingLimit `json:"spendingLimits"`
}

// GasSponsoredGrant is a GasSponsoredRequest signed by the account owner.
type GasSponsoredGrant struct {
	GasSponsoredRequest
	Signature Signature `json:"signature"`
}

// Grant is a signed session grant of either flow.
type Grant interface {
	Flow() Flow

	window() TimeWindow
	methods() []AllowedMethod
	limits() []SpendingLimit
	gasLimit() string
	signature() Signature
}

// Flow returns FlowSession.
func (g SessionGrant) Flow() Flow { return FlowSession }

func (g SessionGrant) window() TimeWindow       { return g.TimeWindow }
func (g SessionGrant) methods() []AllowedMethod { return g.AllowedMethods }
func (g SessionGrant) limits() []SpendingLimit  { return g.SpendingLimits }
func (g SessionGrant) gasLimit() string         { return g.StrkGasLimit }
func (g SessionGrant) signature() Signature     { return g.Signature }

// Flow returns FlowGasSponsored.
func (g GasSponsoredGrant) Flow() Flow { return FlowGasSponsored }

func (g GasSponsoredGrant) window() TimeWindow       { return g.TimeWindow }
func (g GasSponsoredGrant) methods() []AllowedMethod { return g.AllowedMethods }
func (g GasSponsoredGrant) limits() []SpendingLimit  { return g.SpendingLimits }
func (g GasSponsoredGrant) gasLimit() string         { return "" }
func (g GasSponsoredGrant) signature() Signature     { return g.Signature }

func cloneMethods(methods []AllowedMethod) []AllowedMethod {
	out := make([]AllowedMethod, len(methods))
	for i, m := range methods {
		out[i] = m.clone()
	}
	return out
}
