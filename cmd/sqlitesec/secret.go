package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

const (
	secretEnv    = "SQLITESEC_SECRET"
	newSecretEnv = "SQLITESEC_NEW_SECRET"
)

// secretSource reads master secrets from the environment, falling back to
// an interactive prompt
type secretSource struct {
	getenv func(string) string
	prompt func(label string) ([]byte, error)
}

func defaultSecretSource() secretSource {
	return secretSource{getenv: os.Getenv, prompt: promptTerminal}
}

// read returns the secret in envVar, or prompts with label when it is unset
func (s secretSource) read(envVar, label string) ([]byte, error) {
	if value := s.getenv(envVar); value != "" {
		return []byte(value), nil
	}
	if s.prompt == nil {
		return nil, fmt.Errorf("%s is not set", envVar)
	}

	secret, err := s.prompt(label)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("empty %s", label)
	}
	return secret, nil
}

// promptTerminal reads a secret from the terminal with echo disabled
func promptTerminal(label string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("no terminal available to prompt for the %s (set %s)", label, secretEnv)
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", label, err)
	}
	return secret, nil
}

// wipe zeroes a secret once it has been handed to a key provider
func wipe(secret []byte) {
	for i := range secret {
		secret[i] = 0
	}
}
