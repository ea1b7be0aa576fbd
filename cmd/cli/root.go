package cli

import (
	"github.com/spf13/cobra"

	"github.com/vaultimg/vaultimg/internal/buildinfo"
)

// AppName is the CLI binary name, used as the cobra root command's Use.
const AppName = buildinfo.AppName

// Execute builds and runs the root command tree.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - encrypted firmware container decryption and recovery tool",
	}

	rootCmd.PersistentFlags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().String("keys-dir", ".", "directory to search for <id>.bin key sidecar files")

	rootCmd.AddCommand(DefineExtractCommand())
	rootCmd.AddCommand(DefineKeysCommand())
	rootCmd.AddCommand(DefineMountCommand())

	return rootCmd.Execute()
}
