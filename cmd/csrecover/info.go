package main

import (
	"fmt"

	corestorage "github.com/csforensics/corestorage-recover"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Report which signature a device matches, without recovering a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(device string) error {
	// A nil-backed Source: on a CS device this walk will run to
	// completion and report ErrWrongPassphrase unless src happens to be
	// correct (vanishingly unlikely for an empty passphrase), which info
	// treats the same as any other non-mountable result.
	vol, err := corestorage.Open(device, passphrase.NewStatic(nil), log())
	switch {
	case vol != nil:
		defer vol.Close()
		if vol.IsNTFS() {
			fmt.Printf("%s: NTFS\n%s\n", device, vol.NTFS())
			return nil
		}
		fmt.Printf("%s: Core Storage (mountable=%t)\n", device, vol.Mountable())
		return nil
	default:
		return err
	}
}
