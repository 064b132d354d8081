package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"

	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"github.com/pkg/errors"
)

// generateKeys writes `<dirKeys>/<user>/sk` (hex private key) and `<dirKeys>/<user>/address` for every user.
func generateKeys(dirKeys string, users []string) error {
	// Exit if the dir exists
	if _, err := os.Stat(dirKeys); err == nil {
		return fmt.Errorf("the sender keys are already generated. Delete the folder first before running again")
	}

	if err := os.MkdirAll(dirKeys, 0700); err != nil {
		return errors.Wrap(err, "cannot create the key folder")
	}

	for _, user := range users {
		kp, err := keyutils.GenerateKeyPair()
		if err != nil {
			return errors.Wrapf(err, "cannot generate a private key for '%v'", user)
		}

		// Create a directory for the user
		if err := os.MkdirAll(path.Join(dirKeys, user), 0700); err != nil {
			return errors.Wrapf(err, "cannot create the key folder for '%v'", user)
		}

		// Private key
		if err := ioutil.WriteFile(path.Join(dirKeys, user, "sk"), []byte(keyutils.ConvertKeyPairToHex(kp)+"\n"), 0600); err != nil {
			return errors.Wrapf(err, "cannot save the private key for '%v'", user)
		}

		// Address
		if err := ioutil.WriteFile(path.Join(dirKeys, user, "address"), []byte(kp.PublicIdentifier.Hex()+"\n"), 0644); err != nil {
			return errors.Wrapf(err, "cannot save the address for '%v'", user)
		}
	}

	return nil
}
