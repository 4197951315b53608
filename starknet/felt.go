package starknet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrMalformedNumber is returned when a value cannot be read as a field element.
	ErrMalformedNumber = errors.New("malformed number")
	// ErrFeltOverflow is returned when a value does not fit below the field prime.
	ErrFeltOverflow = errors.New("value exceeds field prime")
	// ErrShortStringTooLong is returned for short strings over 31 characters.
	ErrShortStringTooLong = errors.New("short string exceeds 31 characters")
	// ErrShortStringNotASCII is returned for short strings with non-ASCII characters.
	ErrShortStringNotASCII = errors.New("short string must be ASCII")
)

// FieldPrime is the Starknet field modulus 2^251 + 17*2^192 + 1.
var FieldPrime, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)

var (
	two128  = new(big.Int).Lsh(big.NewInt(1), 128)
	two256  = new(big.Int).Lsh(big.NewInt(1), 256)
	mask128 = new(big.Int).Sub(two128, big.NewInt(1))
)

// ToFelt normalizes n with ToHex and converts the result into a field element.
func ToFelt(n interface{}) (*felt.Felt, error) {
	if f, ok := n.(*felt.Felt); ok && f != nil {
		return f, nil
	}

	h := ToHex(n)
	if h == "" || h == NaN {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNumber, n)
	}
	v, err := hexutil.DecodeBig(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrMalformedNumber, n, err)
	}
	return FeltFromBig(v)
}

// ToUint128 is ToFelt restricted to values below 2^128, the range of a Cairo u128.
func ToUint128(n interface{}) (*felt.Felt, error) {
	f, err := ToFelt(n)
	if err != nil {
		return nil, err
	}
	if FeltToBig(f).Cmp(two128) >= 0 {
		return nil, fmt.Errorf("%w: %s exceeds 128 bits", ErrMalformedNumber, f.String())
	}
	return f, nil
}

// FeltFromBig converts a non-negative integer below the field prime into a felt.
func FeltFromBig(v *big.Int) (*felt.Felt, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNumber, v)
	}
	if v.Cmp(FieldPrime) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrFeltOverflow, hexutil.EncodeBig(v))
	}
	return new(felt.Felt).SetBytes(v.Bytes()), nil
}

// FeltFromUint64 converts v into a felt.
func FeltFromUint64(v uint64) *felt.Felt {
	return new(felt.Felt).SetUint64(v)
}

// FeltToBig converts a felt back into a big integer.
func FeltToBig(f *felt.Felt) *big.Int {
	v, err := hexutil.DecodeBig(f.String())
	if err != nil {
		// felt.String is always canonical hex
		panic(err)
	}
	return v
}

// FeltsToHex renders felts as canonical hex strings.
func FeltsToHex(felts []*felt.Felt) []string {
	out := make([]string, len(felts))
	for i, f := range felts {
		out[i] = f.String()
	}
	return out
}

// EncodeShortString packs an ASCII string of at most 31 characters into a felt.
func EncodeShortString(s string) (*felt.Felt, error) {
	if len(s) > 31 {
		return nil, fmt.Errorf("%w: %q", ErrShortStringTooLong, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("%w: %q", ErrShortStringNotASCII, s)
		}
	}
	return new(felt.Felt).SetBytes([]byte(s)), nil
}

// Uint256 is a 256-bit value split into two 128-bit felts, the Cairo u256 layout.
type Uint256 struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// Uint256FromBig splits v into its low and high 128-bit halves.
func Uint256FromBig(v *big.Int) (Uint256, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(two256) >= 0 {
		return Uint256{}, fmt.Errorf("%w: %v does not fit in u256", ErrMalformedNumber, v)
	}
	low := new(big.Int).And(v, mask128)
	high := new(big.Int).Rsh(v, 128)
	return Uint256{
		Low:  hexutil.EncodeBig(low),
		High: hexutil.EncodeBig(high),
	}, nil
}

// Big recombines the halves. Each half must fit in 128 bits.
func (u Uint256) Big() (*big.Int, error) {
	low, high, err := u.Felts()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Or(new(big.Int).Lsh(FeltToBig(high), 128), FeltToBig(low)), nil
}

// Felts returns the low and high halves, each checked to fit in 128 bits.
func (u Uint256) Felts() (*felt.Felt, *felt.Felt, error) {
	low, err := ToUint128(u.Low)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid u256 low: %w", err)
	}
	high, err := ToUint128(u.High)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid u256 high: %w", err)
	}
	return low, high, nil
}
