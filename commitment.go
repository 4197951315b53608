package session

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// CommitMethod computes the GUID the on-chain verifier compares an allowed method against.
//
//	V1: poseidon([typeHash(AllowedMethod), contract, selector])
//	V2: poseidon([typeHash(AllowedMethod), contract, selector, poseidon([h(validation)...])])
//
// where h(validation) = poseidon([typeHash(CalldataValidation), offset, value, validationType]).
// The result equals the typed data struct hash of the method's message entry.
func CommitMethod(method AllowedMethod, version ProtocolVersion) (*felt.Felt, error) {
	vp, err := profileFor(version)
	if err != nil {
		return nil, err
	}
	return vp.commitMethod(method)
}

// CommitMethods commits every method, preserving order.
func CommitMethods(methods []AllowedMethod, version ProtocolVersion) ([]*felt.Felt, error) {
	vp, err := profileFor(version)
	if err != nil {
		return nil, err
	}
	out := make([]*felt.Felt, len(methods))
	for i, m := range methods {
		if out[i], err = vp.commitMethod(m); err != nil {
			return nil, fmt.Errorf("allowed method %d: %w", i, err)
		}
	}
	return out, nil
}

func (p *versionProfile) commitMethod(m AllowedMethod) (*felt.Felt, error) {
	typeHash, err := p.allowedMethodTypeHash()
	if err != nil {
		return nil, err
	}
	contract, err := starknet.ToFelt(m.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address %q: %w", m.ContractAddress, err)
	}
	selector, err := m.ResolveSelector()
	if err != nil {
		return nil, err
	}
	if !p.withValidations {
		return starknet.PoseidonHashMany(typeHash, contract, selector), nil
	}

	validationHashes := make([]*felt.Felt, len(m.CalldataValidations))
	for i, v := range m.CalldataValidations {
		if validationHashes[i], err = p.commitValidation(v); err != nil {
			return nil, fmt.Errorf("calldata validation %d: %w", i, err)
		}
	}
	return starknet.PoseidonHashMany(typeHash, contract, selector, starknet.PoseidonHashMany(validationHashes...)), nil
}

func (p *versionProfile) commitValidation(v CalldataValidation) (*felt.Felt, error) {
	typeHash, err := p.calldataValidationTypeHash()
	if err != nil {
		return nil, err
	}
	value, err := starknet.ToFelt(v.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", v.Value, err)
	}
	return starknet.PoseidonHashMany(
		typeHash,
		starknet.FeltFromUint64(v.Offset),
		value,
		starknet.FeltFromUint64(uint64(v.ValidationType)),
	), nil
}
