package claimlink

import (
	"fmt"
	"math/big"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// TokenType 用于标志被托管资产的类别
type TokenType int

const (
	// Native is the chain's own currency. It has no contract address.
	Native TokenType = iota
	// ERC20 is a fungible token contract.
	ERC20
	// ERC721 is a non-fungible token contract. Requires a token ID.
	ERC721
	// ERC1155 is a multi-token contract. Requires a token ID.
	ERC1155
)

func (t TokenType) String() string {
	switch t {
	case Native:
		return "NATIVE"
	case ERC20:
		return "ERC20"
	case ERC721:
		return "ERC721"
	case ERC1155:
		return "ERC1155"
	default:
		return fmt.Sprintf("%d", int(t))
	}
}

// NewTokenTypeFromString 从 enum 名称获得 TokenType enum。
func NewTokenTypeFromString(enumString string) (ret TokenType, err error) {
	switch enumString {
	case "NATIVE":
		ret = Native
		return
	case "ERC20":
		ret = ERC20
		return
	case "ERC721":
		ret = ERC721
		return
	case "ERC1155":
		ret = ERC1155
		return
	default:
		err = fmt.Errorf("unknown token type '%v'", enumString)
		return
	}
}

// MarshalText makes the enum travel as its name in JSON and YAML.
func (t TokenType) MarshalText() ([]byte, error) {
	if !t.isSupported() {
		return nil, fmt.Errorf("unknown token type %d", int(t))
	}

	return []byte(t.String()), nil
}

func (t *TokenType) UnmarshalText(text []byte) error {
	parsed, err := NewTokenTypeFromString(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

func (t TokenType) isSupported() bool {
	return t >= Native && t <= ERC1155
}

// IsNFT reports whether tokens of this type are identified by an ID.
func (t TokenType) IsNFT() bool {
	return t == ERC721 || t == ERC1155
}

// Token identifies the escrowed asset.
type Token struct {
	Type    TokenType      `json:"type"`
	ChainID uint64         `json:"chainId"`
	Address common.Address `json:"address"` // Zero for native tokens
	ID      *big.Int       `json:"id,omitempty"`
}

// Validate checks the token is well-formed. The returned error has `errorcode.ErrorInvalidDescriptor` as its cause.
func (t *Token) Validate() error {
	if !t.Type.isSupported() {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "token type %d is not supported", int(t.Type))
	}
	if t.ChainID == 0 {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "token chain ID is not set")
	}

	if t.Type == Native {
		if t.Address != (common.Address{}) {
			return errors.Wrap(errorcode.ErrorInvalidDescriptor, "native token must not have an address")
		}
		if t.ID != nil {
			return errors.Wrap(errorcode.ErrorInvalidDescriptor, "native token must not have an ID")
		}
		return nil
	}

	if t.Address == (common.Address{}) {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "%v token address is not provided", t.Type)
	}
	if t.Type == ERC20 && t.ID != nil {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "ERC20 token must not have an ID")
	}
	if t.Type.IsNFT() {
		if t.ID == nil {
			return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "%v token ID is not provided", t.Type)
		}
		if t.ID.Sign() < 0 {
			return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "%v token ID is negative", t.Type)
		}
	}

	return nil
}

// ParseTokenAddress parses a hex contract address. An empty string yields the zero address used by native tokens.
func ParseTokenAddress(hexAddress string) (common.Address, error) {
	if hexAddress == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(hexAddress) {
		return common.Address{}, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "'%v' is not a well-formed address", hexAddress)
	}

	return common.HexToAddress(hexAddress), nil
}
