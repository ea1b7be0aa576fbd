package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultimg/vaultimg/internal/fuse"
	"github.com/vaultimg/vaultimg/internal/hostfs"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/internal/manifest"
)

// DefineMountCommand builds the `mount` subcommand: serve a decrypted
// volume image's extracted files through FUSE, reading their bytes
// directly out of the image via the image's manifest.xml.
func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <volume_image> <manifest_file>",
		Short: "Mount an extracted volume's files through FUSE",
		Long: `The 'mount' command serves the files an 'extract' run recorded in a
manifest.xml directly out of their decrypted volume image, without
copying them to disk a second time. You must provide the path to the
decrypted volume image and the manifest.xml produced alongside its
extracted contents.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "directory to mount at; defaults to the manifest's base name plus _mnt")
	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	imagePath, manifestPath := args[0], args[1]

	image, err := hostfs.Open(imagePath)
	if err != nil {
		return err
	}
	defer image.Close()

	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		return err
	}
	defer manifestFile.Close()

	doc, err := manifest.Read(manifestFile)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = defaultMountpoint(manifestPath)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	log := logger.New(os.Stdout, logger.ParseLevel(logLevel))

	entries := manifestEntriesToFuseEntries(doc.Entries)
	return fuse.Mount(mountpoint, image, entries, log)
}

func defaultMountpoint(manifestPath string) string {
	base := filepath.Base(manifestPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "manifest"
	}
	return name + "_mnt"
}

func manifestEntriesToFuseEntries(entries []manifest.Entry) []fuse.Entry {
	out := make([]fuse.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDirectory {
			continue
		}

		runs := make([]fuse.Run, len(e.Runs))
		for i, r := range e.Runs {
			runs[i] = fuse.Run{
				LogicalOffset: r.Offset,
				ImageOffset:   r.ImageOffset,
				Length:        r.Length,
			}
		}

		out = append(out, fuse.Entry{
			Name: filepath.Base(e.Path),
			Size: e.Size,
			Runs: runs,
		})
	}
	return out
}
