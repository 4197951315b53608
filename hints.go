package session

import (
	"github.com/NethermindEth/juno/core/felt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

// HintNotFound is the hint emitted for a call no allowed method covers.
const HintNotFound = -1

// ResolveHints returns, for each call, the index of the first allowed method whose
// contract and selector match the call and whose calldata validations all hold,
// or HintNotFound. The result always has len(calls) entries.
//
// Hints only save the verifier a search. They are not checked for spending
// limits and several calls may share an index.
func ResolveHints(methods []AllowedMethod, calls []starknet.Call) []int {
	selectors := make([]*felt.Felt, len(methods))
	for i, m := range methods {
		// unresolvable methods stay nil and never match
		selectors[i], _ = m.ResolveSelector()
	}

	hints := make([]int, len(calls))
	for i, call := range calls {
		hints[i] = resolveHint(methods, selectors, call)
	}
	return hints
}

func resolveHint(methods []AllowedMethod, selectors []*felt.Felt, call starknet.Call) int {
	selector := call.Selector()
	for i, m := range methods {
		if selectors[i] == nil || !selectors[i].Equal(selector) {
			continue
		}
		if !starknet.HexEqual(m.ContractAddress, call.ContractAddress) {
			continue
		}
		if satisfiesAll(m.CalldataValidations, call.Calldata) {
			return i
		}
	}
	return HintNotFound
}

func satisfiesAll(validations []CalldataValidation, calldata []string) bool {
	for _, v := range validations {
		if !v.satisfiedBy(calldata) {
			return false
		}
	}
	return true
}
