package claimlink

import (
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"github.com/ethereum/go-ethereum/common"
)

// ClaimLinkToken is the capability carried by a claim URL. Whoever holds it can redeem the transfer, so it must be treated as a bearer secret and never logged.
//
// The deposit variant carries the original link key, whose identifier is the transfer ID. The recovery variant carries a fresh link key together with the sender's signature authorizing it for the transfer.
type ClaimLinkToken struct {
	LinkKey    *keyutils.KeyPair
	TransferID common.Address
	ChainID    uint64
	Signature  []byte // Recovery variant only
	// EncryptionKey is the initial key of the sender message, the `m` parameter. Empty when the deposit carries no message.
	EncryptionKey []byte
}

// HasMessage reports whether the link carries the key of a sender message.
func (t *ClaimLinkToken) HasMessage() bool {
	return len(t.EncryptionKey) > 0
}

// IsRecovery reports whether the token is the recovery variant.
func (t *ClaimLinkToken) IsRecovery() bool {
	return len(t.Signature) > 0
}

// SignatureLength is the byte length of the sender signature, 0 for the deposit variant.
func (t *ClaimLinkToken) SignatureLength() int {
	return len(t.Signature)
}
