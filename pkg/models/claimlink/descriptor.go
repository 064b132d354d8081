package claimlink

import (
	"math/big"
	"time"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// MaxEncryptedMessageLength bounds the sealed sender message: a 140-byte text with its header, nonce and tag.
const MaxEncryptedMessageLength = 2 + 1 + 24 + 16 + 140

// ClaimLinkDescriptor describes what a transfer escrows. It is immutable once a transfer is created from it: the fields must not be modified and `Amount` is copied on construction.
type ClaimLinkDescriptor struct {
	Token      Token
	Sender     common.Address
	Amount     *big.Int // In the token's base units
	Expiration int64    // Unix seconds
	// EncryptedMessage is the sealed sender message passed to the escrow with the deposit. Optional.
	EncryptedMessage []byte
}

// NewClaimLinkDescriptor builds and validates a descriptor. `now` is the creation time the expiration is checked against.
func NewClaimLinkDescriptor(token Token, sender common.Address, amount string, expiration int64, now time.Time) (*ClaimLinkDescriptor, error) {
	parsedAmount, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}

	if token.ID != nil {
		token.ID = new(big.Int).Set(token.ID)
	}

	d := &ClaimLinkDescriptor{
		Token:      token,
		Sender:     sender,
		Amount:     parsedAmount,
		Expiration: expiration,
	}

	if err := d.Validate(now); err != nil {
		return nil, err
	}

	return d, nil
}

// ParseAmount parses a decimal amount in base units. Only non-negative integers are accepted.
func ParseAmount(amount string) (*big.Int, error) {
	if amount == "" {
		return nil, errors.Wrap(errorcode.ErrorInvalidDescriptor, "amount is empty")
	}

	parsed, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "amount '%v' is not an integer", amount)
	}
	if parsed.Sign() < 0 {
		return nil, errors.Wrapf(errorcode.ErrorInvalidDescriptor, "amount '%v' is negative", amount)
	}

	return parsed, nil
}

// ValidateStructure checks everything except the expiration. The returned error has `errorcode.ErrorInvalidDescriptor` as its cause.
func (d *ClaimLinkDescriptor) ValidateStructure() error {
	if err := d.Token.Validate(); err != nil {
		return err
	}

	if d.Sender == (common.Address{}) {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "sender address is not provided")
	}
	if d.Amount == nil {
		return errors.Wrap(errorcode.ErrorInvalidDescriptor, "amount is not provided")
	}
	if d.Amount.Sign() < 0 {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "amount '%v' is negative", d.Amount)
	}
	if len(d.EncryptedMessage) > MaxEncryptedMessageLength {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "encrypted message is %v bytes, at most %v is allowed", len(d.EncryptedMessage), MaxEncryptedMessageLength)
	}
	if d.Token.Type == ERC721 && d.Amount.Cmp(big.NewInt(1)) != 0 {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "ERC721 amount must be 1, got '%v'", d.Amount)
	}

	return nil
}

// Validate checks the descriptor in full, including that the expiration is strictly after `now`.
func (d *ClaimLinkDescriptor) Validate(now time.Time) error {
	if err := d.ValidateStructure(); err != nil {
		return err
	}

	if d.IsExpired(now) {
		return errors.Wrapf(errorcode.ErrorInvalidDescriptor, "expiration %v is not in the future", d.Expiration)
	}

	return nil
}

// IsExpired reports whether the expiration has been reached at `now`.
func (d *ClaimLinkDescriptor) IsExpired(now time.Time) bool {
	return d.Expiration <= now.Unix()
}

// ExpirationTime converts the expiration to a `time.Time`.
func (d *ClaimLinkDescriptor) ExpirationTime() time.Time {
	return time.Unix(d.Expiration, 0)
}
