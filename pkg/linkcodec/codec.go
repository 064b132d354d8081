package linkcodec

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// LinkVersion is written to the `v` parameter of every encoded link.
	LinkVersion = "3"
	// DefaultSource is the `src` value when none is configured, and the value assumed for links without one.
	DefaultSource = "p2p"
	// MaxSignatureLength bounds `sgl`. Contract-wallet signatures can be far longer than 65 bytes.
	MaxSignatureLength = 1024
	// MessageKeyLength is the byte length of the `m` parameter.
	MessageKeyLength = 32

	codePath = "/code"
)

// Codec converts claim link tokens to shareable URLs and back.
type Codec struct {
	ClaimHost string // Scheme and host of the claim app, e.g. `https://p2p.linkdrop.io`
	Source    string
}

// NewCodec creates a codec writing links for the given claim host.
func NewCodec(claimHost string, source string) *Codec {
	if source == "" {
		source = DefaultSource
	}

	return &Codec{
		ClaimHost: strings.TrimSuffix(claimHost, "/"),
		Source:    source,
	}
}

// Encode produces `<host>/#/code?k=..[&sg=..]&i=..&c=..&v=3[&sgl=..]&src=..[&m=0x..]`.
func (c *Codec) Encode(token *claimlink.ClaimLinkToken) (string, error) {
	if token.LinkKey == nil || token.LinkKey.PrivateKey == nil {
		return "", fmt.Errorf("link key is not set")
	}
	if token.ChainID == 0 {
		return "", fmt.Errorf("chain ID is not set")
	}
	if token.SignatureLength() > MaxSignatureLength {
		return "", fmt.Errorf("signature is %v bytes, at most %v is supported", token.SignatureLength(), MaxSignatureLength)
	}
	if !token.IsRecovery() && token.LinkKey.PublicIdentifier != token.TransferID {
		return "", fmt.Errorf("link key does not belong to transfer %v", token.TransferID.Hex())
	}
	if token.HasMessage() && len(token.EncryptionKey) != MessageKeyLength {
		return "", fmt.Errorf("message key is %v bytes, expected %v", len(token.EncryptionKey), MessageKeyLength)
	}

	var sb strings.Builder
	sb.WriteString(c.ClaimHost)
	sb.WriteString("/#")
	sb.WriteString(codePath)
	sb.WriteString("?k=")
	sb.WriteString(keyutils.EncodePrivateKey(token.LinkKey))
	if token.IsRecovery() {
		sb.WriteString("&sg=")
		sb.WriteString(base58.Encode(token.Signature))
	}
	sb.WriteString("&i=")
	sb.WriteString(base58.Encode(token.TransferID.Bytes()))
	sb.WriteString("&c=")
	sb.WriteString(strconv.FormatUint(token.ChainID, 10))
	sb.WriteString("&v=")
	sb.WriteString(LinkVersion)
	if token.IsRecovery() {
		sb.WriteString("&sgl=")
		sb.WriteString(strconv.Itoa(token.SignatureLength()))
	}
	sb.WriteString("&src=")
	sb.WriteString(url.QueryEscape(c.Source))
	if token.HasMessage() {
		sb.WriteString("&m=")
		sb.WriteString(hexutil.Encode(token.EncryptionKey))
	}

	return sb.String(), nil
}

// Decode parses a claim URL. Every failure has `errorcode.ErrorDecode` as its cause.
func Decode(claimURL string) (*claimlink.ClaimLinkToken, error) {
	query, err := parseCodeQuery(claimURL)
	if err != nil {
		return nil, err
	}

	encodedKey, err := requireParam(query, "k")
	if err != nil {
		return nil, err
	}
	linkKey, err := keyutils.DecodePrivateKey(encodedKey)
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "link key: %v", err)
	}

	encodedChainID, err := requireParam(query, "c")
	if err != nil {
		return nil, err
	}
	chainID, err := strconv.ParseUint(encodedChainID, 10, 64)
	if err != nil || chainID == 0 {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "chain ID '%v' is not a positive integer", encodedChainID)
	}

	if _, err := requireParam(query, "v"); err != nil {
		return nil, err
	}

	signature, err := decodeSignature(query)
	if err != nil {
		return nil, err
	}

	messageKey, err := decodeMessageKey(query)
	if err != nil {
		return nil, err
	}

	token := &claimlink.ClaimLinkToken{
		LinkKey:       linkKey,
		ChainID:       chainID,
		Signature:     signature,
		EncryptionKey: messageKey,
	}

	encodedTransferID, err := optionalParam(query, "i")
	if err != nil {
		return nil, err
	}
	switch {
	case encodedTransferID != "":
		transferIDBytes, err := base58.Decode(encodedTransferID)
		if err != nil || len(transferIDBytes) != common.AddressLength {
			return nil, errors.Wrapf(errorcode.ErrorDecode, "transfer ID '%v' is not a Base58 address", encodedTransferID)
		}
		token.TransferID = common.BytesToAddress(transferIDBytes)
		if !token.IsRecovery() && token.TransferID != linkKey.PublicIdentifier {
			return nil, errors.Wrap(errorcode.ErrorDecode, "transfer ID does not match the link key")
		}
	case token.IsRecovery():
		return nil, errors.Wrap(errorcode.ErrorDecode, "recovered link is missing the transfer ID")
	default:
		// Older deposit links leave out `i`. It is implied by the link key.
		token.TransferID = linkKey.PublicIdentifier
	}

	return token, nil
}

// decodeSignature reads `sg` and `sgl`, which must appear together. A signature shorter than `sgl` is left-padded with zeros.
func decodeSignature(query url.Values) ([]byte, error) {
	encodedSig, err := optionalParam(query, "sg")
	if err != nil {
		return nil, err
	}
	encodedLength, err := optionalParam(query, "sgl")
	if err != nil {
		return nil, err
	}

	if encodedSig == "" && encodedLength == "" {
		return nil, nil
	}
	if encodedSig == "" || encodedLength == "" {
		return nil, errors.Wrap(errorcode.ErrorDecode, "'sg' and 'sgl' must be given together")
	}

	sigLength, err := strconv.Atoi(encodedLength)
	if err != nil || sigLength <= 0 || sigLength > MaxSignatureLength {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "signature length '%v' is out of range", encodedLength)
	}

	sig, err := base58.Decode(encodedSig)
	if err != nil || len(sig) == 0 {
		return nil, errors.Wrap(errorcode.ErrorDecode, "signature is not valid Base58")
	}
	if len(sig) > sigLength {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "signature is %v bytes, longer than the declared %v", len(sig), sigLength)
	}

	return common.LeftPadBytes(sig, sigLength), nil
}

// decodeMessageKey reads the optional `m`, a 0x-prefixed 32-byte key.
func decodeMessageKey(query url.Values) ([]byte, error) {
	encoded, err := optionalParam(query, "m")
	if err != nil || encoded == "" {
		return nil, err
	}

	key, err := hexutil.Decode(encoded)
	if err != nil || len(key) != MessageKeyLength {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "message key '%v' is not a 0x-prefixed %v-byte value", encoded, MessageKeyLength)
	}

	return key, nil
}

// parseCodeQuery extracts the query carried in the `#/code?` fragment.
func parseCodeQuery(claimURL string) (url.Values, error) {
	parsed, err := url.Parse(claimURL)
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "not a URL: %v", err)
	}

	path, rawQuery, found := strings.Cut(parsed.Fragment, "?")
	if !found || path != codePath {
		return nil, errors.Wrap(errorcode.ErrorDecode, "URL does not carry a '#/code?' fragment")
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorDecode, "malformed query: %v", err)
	}

	return query, nil
}

func optionalParam(query url.Values, name string) (string, error) {
	values := query[name]
	if len(values) > 1 {
		return "", errors.Wrapf(errorcode.ErrorDecode, "parameter '%v' is given %v times", name, len(values))
	}
	if len(values) == 0 {
		return "", nil
	}

	return values[0], nil
}

func requireParam(query url.Values, name string) (string, error) {
	value, err := optionalParam(query, name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", errors.Wrapf(errorcode.ErrorDecode, "parameter '%v' is missing", name)
	}

	return value, nil
}

// VersionFromURL returns the `v` parameter of a claim URL.
func VersionFromURL(claimURL string) (string, error) {
	query, err := parseCodeQuery(claimURL)
	if err != nil {
		return "", err
	}

	return requireParam(query, "v")
}

// SourceFromURL returns the `src` parameter of a claim URL, `p2p` if absent.
func SourceFromURL(claimURL string) (string, error) {
	query, err := parseCodeQuery(claimURL)
	if err != nil {
		return "", err
	}

	src, err := optionalParam(query, "src")
	if err != nil {
		return "", err
	}
	if src == "" {
		return DefaultSource, nil
	}

	return src, nil
}
