package keyutils

import (
	"bytes"
	"testing"
	"testing/iotest"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairIdentifierIsDerivedFromKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	// The identifier is a pure function of the private key
	rederived := NewKeyPair(kp.PrivateKey)
	assert.Equal(t, kp.PublicIdentifier, rederived.PublicIdentifier)
	assert.Equal(t, crypto.PubkeyToAddress(kp.PrivateKey.PublicKey), kp.PublicIdentifier)
}

func TestGenerateKeyPairIsIndependentAcrossCalls(t *testing.T) {
	seen := make(map[common.Address]struct{})
	for i := 0; i < 256; i++ {
		kp, err := GenerateKeyPair()
		require.NoError(t, err)

		_, dup := seen[kp.PublicIdentifier]
		require.False(t, dup, "identifier collision after %v generations", i)
		seen[kp.PublicIdentifier] = struct{}{}
	}
}

func TestGenerateKeyPairFailsClosedOnEntropyExhaustion(t *testing.T) {
	// Only 10 bytes available, a scalar needs 32
	kp, err := GenerateKeyPairFromReader(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
	assert.Nil(t, kp)

	kp, err = GenerateKeyPairFromReader(iotest.ErrReader(assert.AnError))
	assert.Error(t, err)
	assert.Nil(t, kp)
}

func TestGenerateKeyPairRedrawsOutOfRangeScalar(t *testing.T) {
	// An all-zero scalar is invalid and must be skipped in favour of the next draw
	entropy := append(make([]byte, PrivateKeyLength), bytes.Repeat([]byte{0x11}, PrivateKeyLength)...)
	kp, err := GenerateKeyPairFromReader(bytes.NewReader(entropy))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, bytes.Repeat([]byte{0x11}, PrivateKeyLength), crypto.FromECDSA(kp.PrivateKey))
}

func TestPrivateKeyEncodingRoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		kp, err := GenerateKeyPair()
		require.NoError(t, err)

		decoded, err := DecodePrivateKey(EncodePrivateKey(kp))
		require.NoError(t, err)
		assert.Equal(t, crypto.FromECDSA(kp.PrivateKey), crypto.FromECDSA(decoded.PrivateKey))
		assert.Equal(t, kp.PublicIdentifier, decoded.PublicIdentifier)
	}
}

func TestDecodePrivateKeyAcceptsStrippedLeadingZeros(t *testing.T) {
	scalar := append([]byte{0x00}, bytes.Repeat([]byte{0x22}, PrivateKeyLength-1)...)
	kp, err := DecodePrivateKey(base58.Encode(scalar[1:]))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, scalar, crypto.FromECDSA(kp.PrivateKey))
}

func TestDecodePrivateKeyRejectsMalformedInput(t *testing.T) {
	_, err := DecodePrivateKey("")
	assert.Error(t, err)

	_, err = DecodePrivateKey("0OIl") // Not in the Base58 alphabet
	assert.Error(t, err)

	_, err = DecodePrivateKey(base58.Encode(bytes.Repeat([]byte{0x01}, 33)))
	assert.Error(t, err)
}

func TestHexConversionRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := ConvertHexToKeyPair(ConvertKeyPairToHex(kp))
	require.NoError(t, err)
	assert.Equal(t, kp.PublicIdentifier, parsed.PublicIdentifier)

	_, err = ConvertHexToKeyPair("0xzz")
	assert.Error(t, err)
}

func TestSignDigestAndRecoverSigner(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("claim"))
	sig, err := SignDigest(kp.PrivateKey, digest)
	require.NoError(t, err)
	assert.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	signer, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicIdentifier, signer)

	_, err = RecoverSigner(digest, sig[:64])
	assert.Error(t, err)
}

func TestSignReceiver(t *testing.T) {
	linkKey, err := GenerateKeyPair()
	require.NoError(t, err)
	receiver := common.HexToAddress("0x5659A8557FdBA11AA04cfCfcc59EeF9FA412A7dD")

	sig, err := SignReceiver(linkKey, receiver)
	require.NoError(t, err)

	digest := accounts.TextHash(crypto.Keccak256(receiver.Bytes()))
	signer, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, linkKey.PublicIdentifier, signer)

	_, err = SignReceiver(linkKey, common.Address{})
	assert.Error(t, err)
}
