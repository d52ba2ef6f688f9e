package main

import (
	"fmt"

	corestorage "github.com/csforensics/corestorage-recover"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/spf13/cobra"
)

var ntfsCmd = &cobra.Command{
	Use:   "ntfs <device>",
	Short: "Print NTFS boot-sector metadata for a device that is not Core Storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNTFS(args[0])
	},
}

func init() {
	rootCmd.AddCommand(ntfsCmd)
}

func runNTFS(device string) error {
	// No passphrase is needed on the NTFS path; Open never consults src
	// unless sector 0 carries the CS signature.
	vol, err := corestorage.Open(device, passphrase.NewStatic(nil), log())
	if vol == nil {
		return err
	}
	defer vol.Close()

	if !vol.IsNTFS() {
		return fmt.Errorf("csrecover: %s is not an NTFS volume", device)
	}
	fmt.Println(vol.NTFS())
	return nil
}
