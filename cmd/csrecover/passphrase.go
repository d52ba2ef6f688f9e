package main

import (
	"fmt"
	"os"

	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"golang.org/x/term"
)

// termSource prompts for a passphrase on stdin with local echo suppressed,
// the concrete counterpart to internal/passphrase.Source that
// original_source/CoreStorage/Password.cpp implements against a tty
// directly. Honors the "FIXME: zero out string" the original left behind.
type termSource struct {
	b []byte
}

func promptPassphrase(prompt string) (*termSource, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("csrecover: read passphrase: %w", err)
	}
	return &termSource{b: b}, nil
}

func (s *termSource) Get() ([]byte, error) {
	return s.b, nil
}

func (s *termSource) Zero() {
	for i := range s.b {
		s.b[i] = 0
	}
}

// resolvePassphrase honors --passphrase-env when set (scripted/test use per
// spec.md §6's CLI flags), falling back to the interactive echo-suppressed
// prompt.
func resolvePassphrase() (passphrase.Source, error) {
	if name := passphraseEnvName(); name != "" {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil, fmt.Errorf("csrecover: environment variable %s is not set", name)
		}
		return passphrase.NewStatic([]byte(v)), nil
	}
	return promptPassphrase("Passphrase: ")
}
