package claimlink

import (
	"math/big"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// TokenParams is the wire form of a `Token`.
type TokenParams struct {
	Type    string `json:"type" mapstructure:"type" yaml:"type"`
	ChainID uint64 `json:"chainId" mapstructure:"chainId" yaml:"chainId"`
	Address string `json:"address,omitempty" mapstructure:"address" yaml:"address"`
	ID      string `json:"id,omitempty" mapstructure:"id" yaml:"id"`
}

// ClaimLinkParams is the wire form of a `ClaimLinkDescriptor`, as sent to the signer and accepted by the HTTP API.
type ClaimLinkParams struct {
	Token      TokenParams `json:"token" mapstructure:"token" yaml:"token"`
	Sender     string      `json:"sender" mapstructure:"sender" yaml:"sender"`
	Amount     string      `json:"amount" mapstructure:"amount" yaml:"amount"`
	Expiration int64       `json:"expiration" mapstructure:"expiration" yaml:"expiration"`
	// EncryptedMessage is the sealed sender message as 0x-prefixed hex.
	EncryptedMessage string `json:"encryptedMessage,omitempty" mapstructure:"encryptedMessage" yaml:"encryptedMessage"`
}

// NewClaimLinkParams converts a descriptor to its wire form.
func NewClaimLinkParams(d *ClaimLinkDescriptor) ClaimLinkParams {
	tokenParams := TokenParams{
		Type:    d.Token.Type.String(),
		ChainID: d.Token.ChainID,
	}
	if d.Token.Type != Native {
		tokenParams.Address = d.Token.Address.Hex()
	}
	if d.Token.ID != nil {
		tokenParams.ID = d.Token.ID.String()
	}

	ret := ClaimLinkParams{
		Token:      tokenParams,
		Sender:     d.Sender.Hex(),
		Amount:     d.Amount.String(),
		Expiration: d.Expiration,
	}
	if len(d.EncryptedMessage) > 0 {
		ret.EncryptedMessage = hexutil.Encode(d.EncryptedMessage)
	}

	return ret
}

// ToToken parses the wire form of a token and validates it.
func (p *TokenParams) ToToken() (*Token, error) {
	tokenType, err := NewTokenTypeFromString(p.Type)
	if err != nil {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, err.Error())
	}

	address, err := ParseTokenAddress(p.Address)
	if err != nil {
		return nil, err
	}

	token := &Token{
		Type:    tokenType,
		ChainID: p.ChainID,
		Address: address,
	}

	if p.ID != "" {
		id, ok := new(big.Int).SetString(p.ID, 10)
		if !ok {
			return nil, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "token ID '%v' is not an integer", p.ID)
		}
		token.ID = id
	}

	if err := token.Validate(); err != nil {
		return nil, err
	}

	return token, nil
}

// ToDescriptor parses the wire form into a descriptor. Only the structure is validated: the expiration is left to the caller, which knows the clock.
func (p *ClaimLinkParams) ToDescriptor() (*ClaimLinkDescriptor, error) {
	token, err := p.Token.ToToken()
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(p.Sender) {
		return nil, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "sender '%v' is not a well-formed address", p.Sender)
	}

	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	d := &ClaimLinkDescriptor{
		Token:      *token,
		Sender:     common.HexToAddress(p.Sender),
		Amount:     amount,
		Expiration: p.Expiration,
	}
	if p.EncryptedMessage != "" {
		message, err := hexutil.Decode(p.EncryptedMessage)
		if err != nil {
			return nil, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "encrypted message is not 0x-prefixed hex: %v", err)
		}
		d.EncryptedMessage = message
	}
	if err := d.ValidateStructure(); err != nil {
		return nil, err
	}

	return d, nil
}
