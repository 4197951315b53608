package session

import (
	"fmt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// BuildSchema returns the type graph, primary type and domain (without chain id)
// of a flow and version. The returned document has no message.
func BuildSchema(flow Flow, version ProtocolVersion) (starknet.TypedData, error) {
	fp, vp, err := profiles(flow, version)
	if err != nil {
		return starknet.TypedData{}, err
	}

	types := vp.methodTypes()
	types[starknet.DomainTypeName] = starknet.DomainType()
	types[fp.primaryType] = append([]starknet.TypedDataField(nil), fp.primaryFields...)

	return starknet.TypedData{
		Types:       types,
		PrimaryType: fp.primaryType,
		Domain: starknet.TypedDataDomain{
			Name:     fp.domainName,
			Version:  vp.domainVersion,
			Revision: starknet.TypedDataRevisionActive,
		},
	}, nil
}

// BuildSessionTypedData builds the document the account owner signs to authorize
// a session key.
func BuildSessionTypedData(req SessionSignatureRequest, chainID string, version ProtocolVersion) (starknet.TypedData, error) {
	td, err := BuildSchema(FlowSession, version)
	if err != nil {
		return td, err
	}
	if err := req.Validate(); err != nil {
		return td, err
	}

	ownerKey, err := normalized(req.OwnerPublicKey, "owner public key")
	if err != nil {
		return td, err
	}
	gasLimit, err := starknet.ToUint128(req.StrkGasLimit)
	if err != nil {
		return td, fmt.Errorf("invalid STRK gas limit %q: %w", req.StrkGasLimit, err)
	}
	methods, limits, err := messageEntries(req.AllowedMethods, req.SpendingLimits, versionProfiles[version])
	if err != nil {
		return td, err
	}
	after, before := req.Seconds()

	td.Domain.ChainID = chainID
	td.Message = map[string]interface{}{
		fieldOwnerPublicKey: ownerKey,
		fieldExecuteAfter:   after,
		fieldExecuteBefore:  before,
		fieldStrkGasLimit:   gasLimit.String(),
		fieldAllowedMethods: methods,
		fieldSpendingLimits: limits,
	}
	return td, nil
}

// BuildGasSponsoredTypedData builds the document the account owner signs to let
// CallerAddress execute calls on its behalf.
func BuildGasSponsoredTypedData(req GasSponsoredRequest, chainID string, version ProtocolVersion) (starknet.TypedData, error) {
	td, err := BuildSchema(FlowGasSponsored, version)
	if err != nil {
		return td, err
	}
	if err := req.Validate(); err != nil {
		return td, err
	}

	caller, err := normalized(req.CallerAddress, "caller address")
	if err != nil {
		return td, err
	}
	methods, limits, err := messageEntries(req.AllowedMethods, req.SpendingLimits, versionProfiles[version])
	if err != nil {
		return td, err
	}
	after, before := req.Seconds()

	td.Domain.ChainID = chainID
	td.Message = map[string]interface{}{
		fieldCaller:         caller,
		fieldExecuteAfter:   after,
		fieldExecuteBefore:  before,
		fieldAllowedMethods: methods,
		fieldSpendingLimits: limits,
	}
	return td, nil
}

// Validate checks the time window and that every allowed method resolves.
func (r SessionSignatureRequest) Validate() error {
	return validateRequest(r.TimeWindow, r.AllowedMethods)
}

// Validate checks the time window and that every allowed method resolves.
func (r GasSponsoredRequest) Validate() error {
	return validateRequest(r.TimeWindow, r.AllowedMethods)
}

func validateRequest(window TimeWindow, methods []AllowedMethod) error {
	if err := window.Validate(); err != nil {
		return err
	}
	for i, m := range methods {
		if _, err := m.ResolveSelector(); err != nil {
			return fmt.Errorf("allowed method %d: %w", i, err)
		}
	}
	return nil
}

func messageEntries(methods []AllowedMethod, limits []SpendingLimit, vp *versionProfile) ([]interface{}, []interface{}, error) {
	methodEntries := make([]interface{}, len(methods))
	for i, m := range methods {
		entry, err := methodEntry(m, vp)
		if err != nil {
			return nil, nil, fmt.Errorf("allowed method %d: %w", i, err)
		}
		methodEntries[i] = entry
	}

	limitEntries := make([]interface{}, len(limits))
	for i, limit := range limits {
		entry, err := limitEntry(limit)
		if err != nil {
			return nil, nil, fmt.Errorf("spending limit %d: %w", i, err)
		}
		limitEntries[i] = entry
	}
	return methodEntries, limitEntries, nil
}

func methodEntry(m AllowedMethod, vp *versionProfile) (map[string]interface{}, error) {
	contract, err := normalized(m.ContractAddress, "contract address")
	if err != nil {
		return nil, err
	}
	selector, err := m.ResolveSelector()
	if err != nil {
		return nil, err
	}
	entry := map[string]interface{}{
		fieldContractAddress: contract,
		fieldSelector:        selector.String(),
	}
	if !vp.withValidations {
		return entry, nil
	}

	// present even when empty; wallets reject a document missing the key

	validations := make([]interface{}, len(m.CalldataValidations))
	for i, v := range m.CalldataValidations {
		value, err := normalized(v.Value, "calldata validation value")
		if err != nil {
			return nil, fmt.Errorf("calldata validation %d: %w", i, err)
		}
		validations[i] = map[string]interface{}{
			fieldValidationType: v.ValidationType,
			fieldOffset:         v.Offset,
			fieldValue:          value,
		}
	}
	entry[fieldCalldataValidations] = validations
	return entry, nil
}

func limitEntry(limit SpendingLimit) (map[string]interface{}, error) {
	token, err := normalized(limit.TokenAddress, "token address")
	if err != nil {
		return nil, err
	}
	low, high, err := limit.Amount.Felts()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"token_address": token,
		"amount": map[string]interface{}{
			"low":  low,
			"high": high,
		},
	}, nil
}

// normalized returns value as canonical hex, failing if it is not a felt.
func normalized(value, what string) (string, error) {
	f, err := starknet.ToFelt(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", what, value, err)
	}
	return f.String(), nil
}
