// Package linkmessage seals the optional sender message of a claim link.
//
// The message is encrypted with a key derived from the sender's EIP-712 signature over a fixed seed, so the sender can always re-derive it. The initial key (the SHA-256 of that signature) travels in the claim URL as `m`, and the sealed message is passed to the escrow with the deposit.
package linkmessage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	tdmodel "gitee.com/czyczk/claimlink/pkg/models/typeddata"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	DefaultEncryptionKeyLength = 12
	MinEncryptionKeyLength     = 6
	MaxEncryptionKeyLength     = 43 // Base58 length of a 32-byte key
	MaxTextLength              = 140

	// InitialKeyLength is the byte length of the `m` link parameter.
	InitialKeyLength = 32

	keyLengthPrefix = 2
	formatType0     = 0
	nonceLength     = 24
	keyLength       = 32
)

// SenderMessage is a message to seal into a deposit. `Signer` must hold the sender's key.
type SenderMessage struct {
	Text                string
	EncryptionKeyLength int // `DefaultEncryptionKeyLength` if 0
	Signer              typeddata.TypedDataSigner
}

// EncryptedMessage is a sealed sender message.
//
// Data is laid out as `keyLength(2, big endian) | type(1) | nonce(24) | secretbox`.
type EncryptedMessage struct {
	Data          []byte
	InitialKey    [InitialKeyLength]byte // Goes into the claim URL
	EncryptionKey [keyLength]byte
}

// InitialKeyTypedData is the typed data whose signature seeds the message keys of a transfer.
func InitialKeyTypedData(transferID common.Address, chainID uint64) *tdmodel.TypedDataTemplate {
	return &tdmodel.TypedDataTemplate{
		Domain: map[string]interface{}{
			"name":    "MyEncryptionScheme",
			"version": "1",
			"chainId": chainID,
		},
		Types: map[string][]tdmodel.TypedField{
			"EncryptionMessage": {
				{Name: "seed", Type: "string"},
			},
		},
		PrimaryType: "EncryptionMessage",
		Message: map[string]interface{}{
			"seed": fmt.Sprintf("Encrypting message (transferId: %s)", transferID.Hex()),
		},
	}
}

// NewInitialKey asks the sender to sign the seed of the transfer and hashes the signature.
func NewInitialKey(signer typeddata.TypedDataSigner, transferID common.Address, chainID uint64) ([InitialKeyLength]byte, error) {
	if signer == nil {
		return [InitialKeyLength]byte{}, fmt.Errorf("a signer is required to derive the message key")
	}

	sig, err := signer.SignTypedData(InitialKeyTypedData(transferID, chainID))
	if err != nil {
		return [InitialKeyLength]byte{}, errors.Wrap(err, "sender cannot sign the message key seed")
	}

	return sha256.Sum256(sig), nil
}

// EncryptionKeyFromInitialKey derives the secretbox key from the initial key carried in a link.
func EncryptionKeyFromInitialKey(initialKey [InitialKeyLength]byte, encryptionKeyLength int) ([keyLength]byte, error) {
	return deriveEncryptionKey(initialKey[:], encryptionKeyLength)
}

// EncryptionKeyFromLinkKey derives a message key from the link key itself. Older links carried no `m` and used this key.
func EncryptionKeyFromLinkKey(linkKey *keyutils.KeyPair, encryptionKeyLength int) ([keyLength]byte, error) {
	if linkKey == nil || linkKey.PrivateKey == nil {
		return [keyLength]byte{}, fmt.Errorf("link key is not set")
	}

	return deriveEncryptionKey(linkKey.PrivateKey.D.Bytes(), encryptionKeyLength)
}

// deriveEncryptionKey hashes the Base58 form of the seed truncated to `encryptionKeyLength` characters.
func deriveEncryptionKey(seed []byte, encryptionKeyLength int) ([keyLength]byte, error) {
	if encryptionKeyLength <= 0 {
		return [keyLength]byte{}, fmt.Errorf("encryption key length must be positive, got %v", encryptionKeyLength)
	}

	truncated := base58.Encode(seed)
	if len(truncated) > encryptionKeyLength {
		truncated = truncated[:encryptionKeyLength]
	}
	truncatedBytes, err := base58.Decode(truncated)
	if err != nil {
		return [keyLength]byte{}, errors.Wrap(err, "cannot decode truncated key")
	}

	return sha256.Sum256(truncatedBytes), nil
}

// Encrypt seals the message for a transfer with a random nonce.
func Encrypt(message *SenderMessage, transferID common.Address, chainID uint64) (*EncryptedMessage, error) {
	return EncryptWithNonceSource(message, transferID, chainID, rand.Reader)
}

// EncryptWithNonceSource is `Encrypt` reading the nonce from `random`.
func EncryptWithNonceSource(message *SenderMessage, transferID common.Address, chainID uint64, random io.Reader) (*EncryptedMessage, error) {
	if message == nil || message.Text == "" {
		return nil, fmt.Errorf("message text is required")
	}
	if len(message.Text) > MaxTextLength {
		return nil, fmt.Errorf("message text is %v bytes, at most %v is allowed", len(message.Text), MaxTextLength)
	}

	encryptionKeyLength := message.EncryptionKeyLength
	if encryptionKeyLength == 0 {
		encryptionKeyLength = DefaultEncryptionKeyLength
	}
	if encryptionKeyLength < MinEncryptionKeyLength || encryptionKeyLength > MaxEncryptionKeyLength {
		return nil, fmt.Errorf("encryption key length %v is out of [%v, %v]", encryptionKeyLength, MinEncryptionKeyLength, MaxEncryptionKeyLength)
	}

	initialKey, err := NewInitialKey(message.Signer, transferID, chainID)
	if err != nil {
		return nil, err
	}
	encryptionKey, err := EncryptionKeyFromInitialKey(initialKey, encryptionKeyLength)
	if err != nil {
		return nil, err
	}

	var nonce [nonceLength]byte
	if _, err := io.ReadFull(random, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "cannot draw a nonce")
	}

	data := make([]byte, keyLengthPrefix, keyLengthPrefix+1+nonceLength+len(message.Text)+secretbox.Overhead)
	binary.BigEndian.PutUint16(data, uint16(encryptionKeyLength))
	data = append(data, formatType0)
	data = append(data, nonce[:]...)
	data = secretbox.Seal(data, []byte(message.Text), &nonce, &encryptionKey)

	return &EncryptedMessage{
		Data:          data,
		InitialKey:    initialKey,
		EncryptionKey: encryptionKey,
	}, nil
}

// EncryptionKeyLength reads the key length a sealed message was created with.
func EncryptionKeyLength(data []byte) (int, error) {
	if len(data) < keyLengthPrefix {
		return 0, fmt.Errorf("sealed message is too short")
	}

	return int(binary.BigEndian.Uint16(data)), nil
}

// Decrypt opens a sealed message with the initial key taken from a link.
func Decrypt(data []byte, initialKey [InitialKeyLength]byte) (string, error) {
	encryptionKeyLength, err := EncryptionKeyLength(data)
	if err != nil {
		return "", err
	}
	encryptionKey, err := EncryptionKeyFromInitialKey(initialKey, encryptionKeyLength)
	if err != nil {
		return "", err
	}

	return Open(data, encryptionKey)
}

// DecryptWithSigner re-derives the initial key from the sender's signature and opens the message. This is how the sender reads back their own message.
func DecryptWithSigner(data []byte, signer typeddata.TypedDataSigner, transferID common.Address, chainID uint64) (string, error) {
	initialKey, err := NewInitialKey(signer, transferID, chainID)
	if err != nil {
		return "", err
	}

	return Decrypt(data, initialKey)
}

// Open opens a sealed message with its secretbox key.
func Open(data []byte, encryptionKey [keyLength]byte) (string, error) {
	if len(data) < keyLengthPrefix+1+nonceLength+secretbox.Overhead {
		return "", fmt.Errorf("sealed message is too short")
	}

	sealed := data[keyLengthPrefix:]
	if sealed[0] != formatType0 {
		return "", fmt.Errorf("unknown sealed message type %v", sealed[0])
	}

	var nonce [nonceLength]byte
	copy(nonce[:], sealed[1:1+nonceLength])

	opened, ok := secretbox.Open(nil, sealed[1+nonceLength:], &nonce, &encryptionKey)
	if !ok {
		return "", fmt.Errorf("sealed message cannot be opened with this key")
	}

	return string(opened), nil
}
