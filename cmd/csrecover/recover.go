package main

import (
	"fmt"
	"io"
	"os"

	corestorage "github.com/csforensics/corestorage-recover"
	cswalk "github.com/csforensics/corestorage-recover/internal/corestorage"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <device>",
	Short: "Recover a Core Storage logical volume's encryption key and optionally dump decrypted bytes",
	Long: `recover opens the raw device, walks its Core Storage metadata, and
derives the Volume Master Key from a passphrase (read from stdin with echo
suppressed, or from the environment variable named by --passphrase-env).

On success it reports the volume's identifying UUIDs and size. With
--offset/--length it additionally decrypts and writes that logical byte
range to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecover(args[0])
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
	recoverCmd.Flags().Int64Var(&recoverOffset, "offset", 0, "logical byte offset to start dumping decrypted bytes from")
	recoverCmd.Flags().Int64Var(&recoverLength, "length", 0, "number of decrypted logical bytes to dump (0 disables the dump)")
}

func runRecover(device string) error {
	src, err := resolvePassphrase()
	if err != nil {
		return err
	}
	defer src.Zero()

	vol, err := corestorage.Open(device, src, log())
	if vol == nil {
		return err
	}
	defer vol.Close()

	if !vol.Mountable() {
		if err != nil {
			return err
		}
		return cswalk.ErrWrongPassphrase
	}

	fmt.Printf("physical volume UUID: %s\n", vol.PhysicalUUID())
	fmt.Printf("logical volume family UUID: %s\n", vol.FamilyUUID())
	fmt.Printf("logical volume UUID: %s\n", vol.LogicalUUID())
	fmt.Printf("logical volume size: %d bytes\n", vol.VolumeSize())

	if recoverLength <= 0 {
		return nil
	}

	reader, err := vol.Reader()
	if err != nil {
		return err
	}
	buf := make([]byte, recoverLength)
	n, err := reader.ReadAt(buf, recoverOffset)
	if err != nil && err != io.EOF {
		return err
	}
	_, werr := os.Stdout.Write(buf[:n])
	return werr
}
