package starknet

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
)

// Call is a single contract invocation as submitted in an account multicall.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// Selector returns the selector of the call's entrypoint.
func (c Call) Selector() *felt.Felt {
	return SelectorFromName(c.Entrypoint)
}

// CalldataFelts converts the call arguments into felts.
func (c Call) CalldataFelts() ([]*felt.Felt, error) {
	out := make([]*felt.Felt, len(c.Calldata))
	for i, arg := range c.Calldata {
		f, err := ToFelt(arg)
		if err != nil {
			return nil, fmt.Errorf("calldata[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// CompileExecuteCalldata flattens calls into the Cairo 1 account __execute__ layout:
//
//	[len(calls), (to, selector, len(calldata), calldata...)...]
func CompileExecuteCalldata(calls []Call) ([]*felt.Felt, error) {
	out := []*felt.Felt{FeltFromUint64(uint64(len(calls)))}
	for i, call := range calls {
		to, err := ToFelt(call.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("call %d contract address: %w", i, err)
		}
		args, err := call.CalldataFelts()
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		out = append(out, to, call.Selector(), FeltFromUint64(uint64(len(args))))
		out = append(out, args...)
	}
	return out, nil
}
