package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vaultimg/vaultimg/internal/keystore"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/internal/pipeline"
)

// DefineExtractCommand builds the `extract` subcommand: decrypt one or more
// boot containers and, unless -no is given, recreate their
// volume's files under a sibling directory.
func DefineExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <container_file>...",
		Short: "Decrypt boot containers and recover their filesystem contents",
		Long: `The 'extract' command decrypts one or more encrypted boot containers,
writing the decrypted volume image alongside each input file. Unless
-no is given, it then walks the resulting NTFS or exFAT volume and
recreates its files and directories under a sibling directory, along
with a manifest.xml describing where each file's bytes live in the
decrypted image.

A failure decrypting or extracting one input file does not stop
processing of the remaining ones.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         RunExtract,
	}

	cmd.Flags().Bool("no", false, "decrypt the container only, skip filesystem extraction")
	return cmd
}

func RunExtract(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	keysDir, _ := cmd.Flags().GetString("keys-dir")
	skipFS, _ := cmd.Flags().GetBool("no")

	log := logger.New(os.Stdout, logger.ParseLevel(logLevel))
	keys := keystore.NewDir(keysDir)

	var failures int
	for _, input := range args {
		fileLog := log.WithPrefix(filepath.Base(input))
		if err := extractOne(input, keys, skipFS, fileLog); err != nil {
			log.Errorf("%s: %v", input, err)
			failures++
			continue
		}
	}

	if failures > 0 {
		log.Warnf("%d of %d input files failed", failures, len(args))
	}
	return nil
}

func extractOne(input string, keys *keystore.Dir, skipFS bool, log *logger.Logger) error {
	log.Infof("decrypting %s", input)

	res, err := pipeline.DecryptFile(input, keys, log)
	if err != nil {
		return err
	}

	if skipFS {
		return nil
	}

	log.Infof("recovering filesystem contents from %s", res.OutputPath)
	return pipeline.ExtractFilesystem(res, log)
}
