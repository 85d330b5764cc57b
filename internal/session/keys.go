package session

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

var ErrKeyUnusable = fmt.Errorf("ssh private key is unusable")

// CheckKey verifies the configured private key exists and parses before any
// connection is attempted, so a bad key fails here with a clear message
// instead of somewhere inside the transport.
func CheckKey(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyUnusable, err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		// Passphrase-protected keys are fine: the agent unlocks them.
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrKeyUnusable, err)
	}
	return nil
}
