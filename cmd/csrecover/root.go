// Package main is the csrecover CLI front end: a thin cobra/viper shell
// around the corestorage library. It is the external collaborator spec.md
// §1 carves out of the core's scope (command-line front-end, terminal
// password prompt), grounded on deploymenttheory-go-apfs/cmd's command-tree
// shape and persistent-flag pattern, with config/env binding grounded on
// that repo's internal/disk/dmg.go viper.SetEnvPrefix/AutomaticEnv use.
package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose       bool
	passphraseEnv string
	recoverOffset int64
	recoverLength int64
)

var rootCmd = &cobra.Command{
	Use:     "csrecover",
	Short:   "Recover an Apple Core Storage logical volume's encryption key",
	Version: "0.1.0-dev",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "csrecover: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging to stderr")
	rootCmd.PersistentFlags().StringVar(&passphraseEnv, "passphrase-env", "", "read the passphrase from this environment variable instead of prompting")

	viper.SetEnvPrefix("CSRECOVER")
	viper.AutomaticEnv()
	viper.SetDefault("passphrase-env", "")
	if err := viper.BindPFlag("passphrase-env", rootCmd.PersistentFlags().Lookup("passphrase-env")); err != nil {
		panic(err)
	}
}

// log builds the logr.Logger cmd/csrecover threads through corestorage's
// Open/Recover; verbose selects stderr stdr output over logr.Discard().
func log() logr.Logger {
	if verbose || viper.GetBool("verbose") {
		return stdr.New(nil)
	}
	return logr.Discard()
}

func passphraseEnvName() string {
	if passphraseEnv != "" {
		return passphraseEnv
	}
	return viper.GetString("passphrase-env")
}
