package appinit

import (
	"io/ioutil"
	"strings"

	"gitee.com/czyczk/claimlink/pkg/keyutils"
	errors "github.com/pkg/errors"
)

// LoadSenderKey loads the sender's key pair from a file holding the private key in hex (with or without `0x`) or Base58.
func LoadSenderKey(keyFilePath string) (*keyutils.KeyPair, error) {
	keyBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load sender private key")
	}

	encoded := strings.TrimSpace(string(keyBytes))
	if kp, err := keyutils.ConvertHexToKeyPair(encoded); err == nil {
		return kp, nil
	}

	kp, err := keyutils.DecodePrivateKey(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse sender private key")
	}

	return kp, nil
}
