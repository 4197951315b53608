package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// ProtocolVersion selects the schema, commitment constants and calldata segments
// of a grant. It is fixed at signing time and must be supplied unchanged at every
// redemption; nothing in the encoded payload records it.
type ProtocolVersion string

const (
	V1 ProtocolVersion = "v1"
	V2 ProtocolVersion = "v2"
)

// ParseProtocolVersion parses "v1" or "v2" (case-insensitive).
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	v := ProtocolVersion(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := versionProfiles[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
	return v, nil
}

// Flow distinguishes owner-signed sessions from gas-sponsored sessions.
type Flow string

const (
	FlowSession      Flow = "session"
	FlowGasSponsored Flow = "gas_sponsored"
)

// ParseFlow parses a flow name. Both "gas_sponsored" and "gas-sponsored" are accepted.
func ParseFlow(s string) (Flow, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case string(FlowSession):
		return FlowSession, nil
	case string(FlowGasSponsored):
		return FlowGasSponsored, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFlow, s)
	}
}

// Typed data type and field names. They are part of the signed commitment.
const (
	allowedMethodTypeName      = "AllowedMethod"
	calldataValidationTypeName = "CalldataValidation"

	fieldOwnerPublicKey      = "Owner Public Key"
	fieldCaller              = "Caller"
	fieldExecuteAfter        = "Execute After"
	fieldExecuteBefore       = "Execute Before"
	fieldStrkGasLimit        = "STRK Gas Limit"
	fieldAllowedMethods      = "Allowed Methods"
	fieldSpendingLimits      = "Spending Limits"
	fieldContractAddress     = "Contract Address"
	fieldSelector            = "Selector"
	fieldCalldataValidations = "Calldata Validations"
	fieldOffset              = "Offset"
	fieldValue               = "Value"
	fieldValidationType      = "Validation Type"
)

// versionProfile holds everything that differs between V1 and V2.
type versionProfile struct {
	domainVersion          string
	withValidations        bool
	gasSponsoredEntrypoint string

	allowedMethodTypeHash      func() (*felt.Felt, error)
	calldataValidationTypeHash func() (*felt.Felt, error)
}

// flowProfile holds everything that differs between the two flows.
type flowProfile struct {
	domainName         string
	primaryType        string
	primaryFields      []starknet.TypedDataField
	withGasLimit       bool
	withForwardedCalls bool
}

var versionProfiles = map[ProtocolVersion]*versionProfile{
	V1: newVersionProfile(V1, "2", GasSponsoredEntrypointV1),
	V2: newVersionProfile(V2, "3", GasSponsoredEntrypointV2),
}

var flowProfiles = map[Flow]*flowProfile{
	FlowSession: {
		domainName:  "Account.execute_session",
		primaryType: "SessionExecution",
		primaryFields: []starknet.TypedDataField{
			{Name: fieldOwnerPublicKey, Type: "felt"},
			{Name: fieldExecuteAfter, Type: "timestamp"},
			{Name: fieldExecuteBefore, Type: "timestamp"},
			{Name: fieldStrkGasLimit, Type: "u128"},
			{Name: fieldAllowedMethods, Type: allowedMethodTypeName + "*"},
			{Name: fieldSpendingLimits, Type: "TokenAmount*"},
		},
		withGasLimit: true,
	},
	FlowGasSponsored: {
		domainName:  "Account.execute_gs_session",
		primaryType: "GasSponsoredSessionExecution",
		primaryFields: []starknet.TypedDataField{
			{Name: fieldCaller, Type: "ContractAddress"},
			{Name: fieldExecuteAfter, Type: "timestamp"},
			{Name: fieldExecuteBefore, Type: "timestamp"},
			{Name: fieldAllowedMethods, Type: allowedMethodTypeName + "*"},
			{Name: fieldSpendingLimits, Type: "TokenAmount*"},
		},
		withForwardedCalls: true,
	},
}

func newVersionProfile(version ProtocolVersion, domainVersion, gasSponsoredEntrypoint string) *versionProfile {
	p := &versionProfile{
		domainVersion:          domainVersion,
		withValidations:        version == V2,
		gasSponsoredEntrypoint: gasSponsoredEntrypoint,
	}
	types := p.methodTypes()
	p.allowedMethodTypeHash = sync.OnceValues(func() (*felt.Felt, error) {
		return starknet.TypeHash(types, allowedMethodTypeName)
	})
	p.calldataValidationTypeHash = sync.OnceValues(func() (*felt.Felt, error) {
		if !p.withValidations {
			return nil, fmt.Errorf("%w: %s has no calldata validations", ErrUnsupportedVersion, version)
		}
		return starknet.TypeHash(types, calldataValidationTypeName)
	})
	return p
}

// methodTypes returns the AllowedMethod type graph of the version.
func (p *versionProfile) methodTypes() map[string][]starknet.TypedDataField {
	types := map[string][]starknet.TypedDataField{
		allowedMethodTypeName: {
			{Name: fieldContractAddress, Type: "ContractAddress"},
			{Name: fieldSelector, Type: "selector"},
		},
	}
	if p.withValidations {
		types[allowedMethodTypeName] = append(types[allowedMethodTypeName],
			starknet.TypedDataField{Name: fieldCalldataValidations, Type: calldataValidationTypeName + "*"})
		types[calldataValidationTypeName] = []starknet.TypedDataField{
			{Name: fieldOffset, Type: "u128"},
			{Name: fieldValue, Type: "felt"},
			{Name: fieldValidationType, Type: "u128"},
		}
	}
	return types
}

func profiles(flow Flow, version ProtocolVersion) (*flowProfile, *versionProfile, error) {
	fp, ok := flowProfiles[flow]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFlow, flow)
	}
	vp, err := profileFor(version)
	if err != nil {
		return nil, nil, err
	}
	return fp, vp, nil
}

func profileFor(version ProtocolVersion) (*versionProfile, error) {
	vp, ok := versionProfiles[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return vp, nil
}
