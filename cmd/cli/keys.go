package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultimg/vaultimg/internal/keystore"
)

// DefineKeysCommand builds the `keys` command group for managing <id>.bin
// key sidecar files.
func DefineKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage container key sidecar files",
	}
	keysCmd.AddCommand(defineKeysAddCommand())
	return keysCmd
}

func defineKeysAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id> <key_hex> [iv_hex]",
		Short: "Write a <id>.bin key sidecar for a container id",
		Long: `The 'keys add' command writes a <id>.bin sidecar file that the 'extract'
command consults when a container id is not found in vaultimg's built-in
key table. key_hex must be 32 hex characters (16 bytes); iv_hex, if given,
must also be 32 hex characters.`,
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE:         RunKeysAdd,
	}
	return cmd
}

func RunKeysAdd(cmd *cobra.Command, args []string) error {
	id := args[0]

	key, err := parseHexKey(args[1])
	if err != nil {
		return fmt.Errorf("key_hex: %w", err)
	}

	var ivPtr *[16]byte
	if len(args) == 3 {
		iv, err := parseHexKey(args[2])
		if err != nil {
			return fmt.Errorf("iv_hex: %w", err)
		}
		ivPtr = &iv
	}

	keysDir, _ := cmd.Flags().GetString("keys-dir")
	if keysDir == "" {
		var err error
		keysDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	dir := keystore.NewDir(keysDir)
	if err := dir.WriteSidecar(id, key, ivPtr); err != nil {
		return err
	}

	fmt.Printf("wrote %s/%s.bin\n", keysDir, id)
	return nil
}

func parseHexKey(s string) ([16]byte, error) {
	var out [16]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != 16 {
		return out, fmt.Errorf("want 16 bytes (32 hex chars), got %d bytes", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
