package keyutils

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// PrivateKeyLength is the byte length of a serialized secp256k1 private scalar.
const PrivateKeyLength = 32

// SignatureLength is the byte length of an `r || s || v` signature.
const SignatureLength = 65

// A scalar outside [1, N) is rejected and redrawn. The probability of hitting this even once is about 2^-128.
const maxScalarDraws = 8

// KeyPair holds an ephemeral secp256k1 key and the chain address derived from its public key.
type KeyPair struct {
	PrivateKey       *ecdsa.PrivateKey
	PublicIdentifier common.Address
}

// GenerateKeyPair draws a fresh key pair from the operating system's CSPRNG.
func GenerateKeyPair() (*KeyPair, error) {
	return GenerateKeyPairFromReader(rand.Reader)
}

// GenerateKeyPairFromReader draws a key pair from the given entropy source. A failing source is fatal: the error is returned and no key is produced.
func GenerateKeyPairFromReader(entropy io.Reader) (*KeyPair, error) {
	buf := make([]byte, PrivateKeyLength)
	for i := 0; i < maxScalarDraws; i++ {
		if _, err := io.ReadFull(entropy, buf); err != nil {
			return nil, errors.Wrap(err, "cannot read entropy for a private key")
		}

		privKey, err := crypto.ToECDSA(buf)
		if err != nil {
			continue
		}

		return NewKeyPair(privKey), nil
	}

	return nil, fmt.Errorf("cannot draw a valid private scalar after %v attempts", maxScalarDraws)
}

// NewKeyPair derives the public identifier of a private key.
func NewKeyPair(privKey *ecdsa.PrivateKey) *KeyPair {
	return &KeyPair{
		PrivateKey:       privKey,
		PublicIdentifier: crypto.PubkeyToAddress(privKey.PublicKey),
	}
}

// EncodePrivateKey converts the private key to the Base58 form embedded in claim URLs.
func EncodePrivateKey(kp *KeyPair) string {
	return base58.Encode(crypto.FromECDSA(kp.PrivateKey))
}

// DecodePrivateKey parses a Base58 private key. Keys shorter than 32 bytes are left-padded, since some encoders strip leading zero bytes of the scalar.
func DecodePrivateKey(encoded string) (*KeyPair, error) {
	if encoded == "" {
		return nil, fmt.Errorf("cannot decode an empty private key")
	}

	keyBytes, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode private key from Base58")
	}
	if len(keyBytes) > PrivateKeyLength {
		return nil, fmt.Errorf("private key is %v bytes, expected at most %v", len(keyBytes), PrivateKeyLength)
	}

	privKey, err := crypto.ToECDSA(common.LeftPadBytes(keyBytes, PrivateKeyLength))
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert bytes to private key")
	}

	return NewKeyPair(privKey), nil
}

// ConvertHexToKeyPair parses a hex private key, with or without the 0x prefix. Used for sender key files.
func ConvertHexToKeyPair(hexKey string) (*KeyPair, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert hex to private key")
	}

	return NewKeyPair(privKey), nil
}

// ConvertKeyPairToHex converts the private key to 0x-prefixed hex.
func ConvertKeyPairToHex(kp *KeyPair) string {
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(kp.PrivateKey))
}

// SignDigest signs a 32-byte digest and returns the signature with `v` in {27, 28}, as on-chain verifiers expect.
func SignDigest(privKey *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, errors.Wrap(err, "cannot sign digest")
	}

	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced the signature over the digest. Accepts `v` in either {0, 1} or {27, 28}.
func RecoverSigner(digest []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature is %v bytes, expected %v", len(sig), SignatureLength)
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "cannot recover public key from signature")
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignReceiver produces the link key's EIP-191 signature over keccak256(receiver). It proves to the signer that the holder of the link key chose `receiver`.
func SignReceiver(linkKey *KeyPair, receiver common.Address) ([]byte, error) {
	if receiver == (common.Address{}) {
		return nil, fmt.Errorf("receiver address is empty")
	}

	digest := accounts.TextHash(crypto.Keccak256(receiver.Bytes()))
	return SignDigest(linkKey.PrivateKey, digest)
}
