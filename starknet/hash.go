package starknet

import (
	"strings"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PoseidonHashMany hashes an ordered list of felts with the Poseidon sponge used by
// Starknet (poseidon_hash_many). The empty list is a valid input.
func PoseidonHashMany(elems ...*felt.Felt) *felt.Felt {
	return crypto.PoseidonArray(elems...)
}

// StarknetKeccak is keccak256 truncated to the low 250 bits.
func StarknetKeccak(data []byte) *felt.Felt {
	h := ethcrypto.Keccak256(data)
	h[0] &= 0x03
	return new(felt.Felt).SetBytes(h)
}

// SelectorFromName derives an entrypoint selector from its name.
func SelectorFromName(name string) *felt.Felt {
	return StarknetKeccak([]byte(name))
}

// GetSelector returns value unchanged when it already is a number, otherwise it
// treats value as an entrypoint name and derives its selector.
func GetSelector(value string) (*felt.Felt, error) {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return ToFelt(v)
	}
	return SelectorFromName(value), nil
}
