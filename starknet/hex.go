package starknet

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
)

// NaN is returned by ToHex when the input cannot be read as a non-negative integer.
const NaN = "NaN"

// Bare hex digits without a 0x prefix (input is already lowercased)
var bareHexRegex = regexp.MustCompile(`^[0-9a-f]+$`)

// ToHex converts a numeric value into its canonical lowercase 0x-prefixed hex form.
//
// Every comparison between addresses, selectors and calldata values goes through this
// function, since they arrive as a mix of decimal strings, hex strings and Go integers.
//
// The conversion never fails:
//   - nil and "" are treated as absent and returned as "". Unlike BigInt("") in
//     starknet.js, which yields 0, an empty string is not zero here so that ToFelt
//     rejects a missing value instead of encoding 0x0
//   - decimal and 0x/0X hex strings are parsed exactly
//   - "0x" becomes "0x0"
//   - bare hex digits ("abc123") are read as hex
//   - anything else logs a diagnostic and yields NaN
//
// Args:
//
//	n: string, any Go integer type, *big.Int, *felt.Felt or fmt.Stringer
//
// Returns:
//
//	Canonical hex string, "" for absent input or NaN for malformed input
func ToHex(n interface{}) string {
	switch v := n.(type) {
	case nil:
		return ""
	case string:
		return hexFromString(v)
	case *felt.Felt:
		if v == nil {
			return ""
		}
		return v.String()
	case *big.Int:
		if v == nil {
			return ""
		}
		return hexFromBig(v, v.String())
	case int:
		return hexFromBig(big.NewInt(int64(v)), fmt.Sprint(v))
	case int8:
		return hexFromBig(big.NewInt(int64(v)), fmt.Sprint(v))
	case int16:
		return hexFromBig(big.NewInt(int64(v)), fmt.Sprint(v))
	case int32:
		return hexFromBig(big.NewInt(int64(v)), fmt.Sprint(v))
	case int64:
		return hexFromBig(big.NewInt(v), fmt.Sprint(v))
	case uint:
		return hexFromBig(new(big.Int).SetUint64(uint64(v)), fmt.Sprint(v))
	case uint8:
		return hexFromBig(new(big.Int).SetUint64(uint64(v)), fmt.Sprint(v))
	case uint16:
		return hexFromBig(new(big.Int).SetUint64(uint64(v)), fmt.Sprint(v))
	case uint32:
		return hexFromBig(new(big.Int).SetUint64(uint64(v)), fmt.Sprint(v))
	case uint64:
		return hexFromBig(new(big.Int).SetUint64(v), fmt.Sprint(v))
	case fmt.Stringer:
		return hexFromString(v.String())
	default:
		return hexFromString(fmt.Sprint(v))
	}
}

func hexFromBig(v *big.Int, original string) string {
	if v.Sign() < 0 {
		zap.L().Warn("hex normalization failed",
			zap.String("input", original),
			zap.String("reason", "negative value"))
		return NaN
	}
	return hexutil.EncodeBig(v)
}

func hexFromString(s string) string {
	if s == "" {
		return ""
	}

	if v, ok := math.ParseBig256(strings.TrimSpace(s)); ok {
		return hexFromBig(v, s)
	}

	str := strings.ToLower(strings.TrimSpace(s))
	if str == "0x" {
		return "0x0"
	}
	if bareHexRegex.MatchString(str) {
		return hexFromString("0x" + str)
	}

	zap.L().Warn("hex normalization failed",
		zap.String("input", s),
		zap.String("reason", "not a number"))
	return NaN
}

// HexEqual reports whether a and b denote the same number.
// Absent and malformed values never compare equal, not even to themselves.
func HexEqual(a, b interface{}) bool {
	ha := ToHex(a)
	if ha == "" || ha == NaN {
		return false
	}
	return ha == ToHex(b)
}
