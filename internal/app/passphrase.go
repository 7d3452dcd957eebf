package app

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// PassphraseEnv supplies the passphrase non-interactively.
const PassphraseEnv = "HIST_PASSPHRASE"

// PassphraseFunc returns the passphrase protecting the private key.
type PassphraseFunc func() (string, error)

// ErrNoTerminal is returned when a passphrase is needed but neither the
// environment nor a terminal can provide it.
var ErrNoTerminal = errors.New("no terminal to read passphrase from")

// ReadPassphrase returns $HIST_PASSPHRASE if set, otherwise it prompts on
// the terminal without echo.
func ReadPassphrase(prompt string) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	return promptPassphrase(prompt)
}

// ReadNewPassphrase is ReadPassphrase for choosing a passphrase: on a
// terminal it asks twice and requires both entries to match.
func ReadNewPassphrase() (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	first, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: set %s", ErrNoTerminal, PassphraseEnv)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}
