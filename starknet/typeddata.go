package starknet

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/math"
)

const (
	// TypedDataRevisionActive is the only SNIP-12 revision supported here.
	TypedDataRevisionActive = "1"

	// DomainTypeName is the SNIP-12 revision 1 domain type.
	DomainTypeName = "StarknetDomain"

	messagePrefix = "StarkNet Message"
)

// TypedDataField represents a field in SNIP-12 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedDataDomain represents the SNIP-12 domain separator
type TypedDataDomain struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	ChainID  string `json:"chainId"`
	Revision string `json:"revision"`
}

// Map returns the domain as a message object for struct hashing.
func (d TypedDataDomain) Map() map[string]interface{} {
	return map[string]interface{}{
		"name":     d.Name,
		"version":  d.Version,
		"chainId":  d.ChainID,
		"revision": d.Revision,
	}
}

// TypedData is the signable document handed to wallets and signers.
type TypedData struct {
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Domain      TypedDataDomain             `json:"domain"`
	Message     map[string]interface{}      `json:"message"`
}

// DomainType returns the StarknetDomain field list used by revision 1.
func DomainType() []TypedDataField {
	return []TypedDataField{
		{Name: "name", Type: "shortstring"},
		{Name: "version", Type: "shortstring"},
		{Name: "chainId", Type: "shortstring"},
		{Name: "revision", Type: "shortstring"},
	}
}

// presetTypes are implicitly available to every revision 1 document.
var presetTypes = map[string][]TypedDataField{
	"u256": {
		{Name: "low", Type: "u128"},
		{Name: "high", Type: "u128"},
	},
	"TokenAmount": {
		{Name: "token_address", Type: "ContractAddress"},
		{Name: "amount", Type: "u256"},
	},
	"NftId": {
		{Name: "collection_address", Type: "ContractAddress"},
		{Name: "token_id", Type: "u256"},
	},
}

func withPresets(types map[string][]TypedDataField) map[string][]TypedDataField {
	all := make(map[string][]TypedDataField, len(types)+len(presetTypes))
	for name, fields := range types {
		all[name] = fields
	}
	for name, fields := range presetTypes {
		all[name] = fields
	}
	return all
}

// dependencies returns typeName followed by every struct type it references, each once.
func dependencies(all map[string][]TypedDataField, typeName string, seen []string) []string {
	base := strings.TrimSuffix(typeName, "*")
	if _, ok := all[base]; !ok {
		return seen
	}
	for _, s := range seen {
		if s == base {
			return seen
		}
	}
	seen = append(seen, base)
	for _, field := range all[base] {
		seen = dependencies(all, field.Type, seen)
	}
	return seen
}

func quote(s string) string {
	return `"` + s + `"`
}

// EncodeType renders the revision 1 type string of typeName: the primary type
// followed by its dependencies in alphabetical order, every name quoted, e.g.
//
//	"AllowedMethod"("Contract Address":"ContractAddress","Selector":"selector")
func EncodeType(types map[string][]TypedDataField, typeName string) (string, error) {
	all := withPresets(types)
	deps := dependencies(all, typeName, nil)
	if len(deps) == 0 {
		return "", fmt.Errorf("unknown type %q", typeName)
	}
	rest := append([]string(nil), deps[1:]...)
	sort.Strings(rest)

	var b strings.Builder
	for _, name := range append([]string{deps[0]}, rest...) {
		fields := make([]string, len(all[name]))
		for i, field := range all[name] {
			fields[i] = quote(field.Name) + ":" + quote(field.Type)
		}
		b.WriteString(quote(name))
		b.WriteString("(")
		b.WriteString(strings.Join(fields, ","))
		b.WriteString(")")
	}
	return b.String(), nil
}

// TypeHash returns the Starknet keccak of the encoded type.
func TypeHash(types map[string][]TypedDataField, typeName string) (*felt.Felt, error) {
	encoded, err := EncodeType(types, typeName)
	if err != nil {
		return nil, err
	}
	return StarknetKeccak([]byte(encoded)), nil
}

// StructHash hashes data as an instance of typeName:
//
//	poseidon([typeHash, encode(field_0), ..., encode(field_n)])
//
// Array fields missing from data are encoded as empty arrays. Any other missing
// field is an error.
func StructHash(types map[string][]TypedDataField, typeName string, data map[string]interface{}) (*felt.Felt, error) {
	return structHash(withPresets(types), typeName, data)
}

func structHash(all map[string][]TypedDataField, typeName string, data map[string]interface{}) (*felt.Felt, error) {
	fields, ok := all[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", typeName)
	}
	typeHash, err := TypeHash(all, typeName)
	if err != nil {
		return nil, err
	}

	elems := make([]*felt.Felt, 0, len(fields)+1)
	elems = append(elems, typeHash)
	for _, field := range fields {
		value, ok := data[field.Name]
		if !ok && !strings.HasSuffix(field.Type, "*") {
			return nil, fmt.Errorf("missing data for %s.%q", typeName, field.Name)
		}
		encoded, err := encodeValue(all, field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%q: %w", typeName, field.Name, err)
		}
		elems = append(elems, encoded)
	}
	return PoseidonHashMany(elems...), nil
}

func encodeValue(all map[string][]TypedDataField, typeName string, value interface{}) (*felt.Felt, error) {
	if _, ok := all[typeName]; ok {
		data, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected object for type %q, got %T", typeName, value)
		}
		return structHash(all, typeName, data)
	}

	if strings.HasSuffix(typeName, "*") {
		items, err := asSlice(value)
		if err != nil {
			return nil, err
		}
		elemType := strings.TrimSuffix(typeName, "*")
		hashes := make([]*felt.Felt, len(items))
		for i, item := range items {
			if hashes[i], err = encodeValue(all, elemType, item); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return PoseidonHashMany(hashes...), nil
	}

	switch typeName {
	case "felt", "shortstring", "ContractAddress", "ClassHash", "timestamp", "u128":
		return hexOrShortString(value)
	case "selector":
		s, ok := value.(string)
		if !ok {
			return ToFelt(value)
		}
		return GetSelector(s)
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return FeltFromUint64(1), nil
		}
		return FeltFromUint64(0), nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typeName)
	}
}

// hexOrShortString reads numeric strings as numbers and anything else as a short string.
func hexOrShortString(value interface{}) (*felt.Felt, error) {
	s, ok := value.(string)
	if !ok {
		return ToFelt(value)
	}
	if v, ok := math.ParseBig256(strings.TrimSpace(s)); ok && v.Sign() >= 0 {
		return FeltFromBig(v)
	}
	return EncodeShortString(s)
}

func asSlice(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if items, ok := value.([]interface{}); ok {
		return items, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected array, got %T", value)
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// MessageHash computes the SNIP-12 digest an account signs for td:
//
//	poseidon(["StarkNet Message", hash(domain), account, hash(message)])
//
// Args:
//
//	td: The typed data document
//	account: Address of the signing account
//
// Returns:
//
//	Message hash felt
//	error if the document is malformed or uses an unsupported revision
func MessageHash(td TypedData, account string) (*felt.Felt, error) {
	if td.Domain.Revision != TypedDataRevisionActive {
		return nil, fmt.Errorf("unsupported typed data revision %q", td.Domain.Revision)
	}

	all := withPresets(td.Types)
	if _, ok := all[DomainTypeName]; !ok {
		all[DomainTypeName] = DomainType()
	}

	prefix, err := EncodeShortString(messagePrefix)
	if err != nil {
		return nil, err
	}
	domainHash, err := structHash(all, DomainTypeName, td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	accountFelt, err := ToFelt(account)
	if err != nil {
		return nil, fmt.Errorf("invalid account address: %w", err)
	}
	messageHash, err := structHash(all, td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	return PoseidonHashMany(prefix, domainHash, accountFelt, messageHash), nil
}
