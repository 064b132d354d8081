package typeddata

import (
	"encoding/json"
	"fmt"
	"math/big"

	"gitee.com/czyczk/claimlink/pkg/keyutils"
	tdmodel "gitee.com/czyczk/claimlink/pkg/models/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// The domain type is rebuilt from the fields present after normalization, in this canonical order.
var domainFieldOrder = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// TypedDataSigner produces an EIP-712 signature for a normalized template. Implementations hold the sender's key.
type TypedDataSigner interface {
	Address() common.Address
	SignTypedData(template *tdmodel.TypedDataTemplate) ([]byte, error)
}

// KeySigner signs with an in-memory key pair.
type KeySigner struct {
	KeyPair *keyutils.KeyPair
}

// NewKeySigner wraps a key pair as a `TypedDataSigner`.
func NewKeySigner(kp *keyutils.KeyPair) *KeySigner {
	return &KeySigner{KeyPair: kp}
}

func (s *KeySigner) Address() common.Address {
	return s.KeyPair.PublicIdentifier
}

func (s *KeySigner) SignTypedData(template *tdmodel.TypedDataTemplate) ([]byte, error) {
	digest, err := Hash(template)
	if err != nil {
		return nil, err
	}

	return keyutils.SignDigest(s.KeyPair.PrivateKey, digest)
}

// Hash computes the EIP-712 digest of a normalized template.
func Hash(template *tdmodel.TypedDataTemplate) ([]byte, error) {
	typedData, err := ToAPITypedData(template)
	if err != nil {
		return nil, err
	}

	digest, _, err := apitypes.TypedDataAndHash(*typedData)
	if err != nil {
		return nil, errors.Wrap(err, "cannot hash typed data")
	}

	return digest, nil
}

// ToAPITypedData converts a normalized template to the go-ethereum representation, regenerating the domain type from the domain fields present.
func ToAPITypedData(template *tdmodel.TypedDataTemplate) (*apitypes.TypedData, error) {
	primaryType, err := InferPrimaryType(template)
	if err != nil {
		return nil, err
	}

	domain, err := parseDomain(template.Domain)
	if err != nil {
		return nil, err
	}

	types := apitypes.Types{}
	for name, fields := range template.Types {
		if name == tdmodel.DomainTypeName {
			continue
		}
		converted := make([]apitypes.Type, 0, len(fields))
		for _, field := range fields {
			converted = append(converted, apitypes.Type{Name: field.Name, Type: field.Type})
		}
		types[name] = converted
	}

	domainType := make([]apitypes.Type, 0, len(domainFieldOrder))
	for _, field := range domainFieldOrder {
		if _, ok := template.Domain[field.Name]; ok {
			domainType = append(domainType, field)
		}
	}
	types[tdmodel.DomainTypeName] = domainType

	return &apitypes.TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     apitypes.TypedDataMessage(toAPIMessage(template.Message)),
	}, nil
}

// toAPIMessage copies the message, turning `json.Number` values into the decimal strings the encoder understands.
func toAPIMessage(message map[string]interface{}) map[string]interface{} {
	converted := make(map[string]interface{}, len(message))
	for key, value := range message {
		converted[key] = toAPIValue(value)
	}

	return converted
}

func toAPIValue(value interface{}) interface{} {
	switch v := value.(type) {
	case json.Number:
		return v.String()
	case map[string]interface{}:
		return toAPIMessage(v)
	case []interface{}:
		converted := make([]interface{}, len(v))
		for i, item := range v {
			converted[i] = toAPIValue(item)
		}
		return converted
	}

	return value
}

func parseDomain(raw map[string]interface{}) (*apitypes.TypedDataDomain, error) {
	domain := &apitypes.TypedDataDomain{}

	for key, value := range raw {
		switch key {
		case "name":
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("domain name is not a string")
			}
			domain.Name = str
		case "version":
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("domain version is not a string")
			}
			domain.Version = str
		case "chainId":
			chainID, err := parseChainID(value)
			if err != nil {
				return nil, err
			}
			domain.ChainId = chainID
		case "verifyingContract":
			str, ok := value.(string)
			if !ok || !common.IsHexAddress(str) {
				return nil, fmt.Errorf("domain verifying contract '%v' is not an address", value)
			}
			domain.VerifyingContract = str
		case "salt":
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("domain salt is not a string")
			}
			domain.Salt = str
		default:
			return nil, fmt.Errorf("unknown domain field '%v'", key)
		}
	}

	return domain, nil
}

func parseChainID(value interface{}) (*math.HexOrDecimal256, error) {
	var parsed *big.Int
	switch v := value.(type) {
	case float64:
		parsed = new(big.Int).SetUint64(uint64(v))
	case int:
		parsed = big.NewInt(int64(v))
	case int64:
		parsed = big.NewInt(v)
	case uint64:
		parsed = new(big.Int).SetUint64(v)
	case json.Number:
		n, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, fmt.Errorf("domain chain ID '%v' is not an integer", v)
		}
		parsed = n
	case string:
		n, ok := math.ParseBig256(v)
		if !ok {
			return nil, fmt.Errorf("domain chain ID '%v' is not an integer", v)
		}
		parsed = n
	default:
		return nil, fmt.Errorf("domain chain ID has unsupported type %T", value)
	}

	return (*math.HexOrDecimal256)(parsed), nil
}

// RecoverTypedDataSigner returns the address that signed the template.
func RecoverTypedDataSigner(template *tdmodel.TypedDataTemplate, sig []byte) (common.Address, error) {
	digest, err := Hash(template)
	if err != nil {
		return common.Address{}, err
	}

	return keyutils.RecoverSigner(digest, sig)
}
