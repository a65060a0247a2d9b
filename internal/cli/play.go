package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var imageOutput string

var playCmd = &cobra.Command{
	Use:   "play <clip>",
	Short: "Play a clip on the service host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := st.PlayClip(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Playing %s\n", args[0])
		return nil
	},
}

var imageCmd = &cobra.Command{
	Use:   "image <clip>",
	Short: "Download the image of a clip",
	Long: `Download the image of a clip.

Examples:
  playground image 0001
  playground image 0001 -o ./frames/0001.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runImage,
}

func init() {
	imageCmd.Flags().StringVarP(&imageOutput, "output", "o", "", "output file (default <clip>.<ext>)")
}

func runImage(cmd *cobra.Command, args []string) error {
	clip := args[0]
	data, contentType, err := apiClient.Image(cmd.Context(), clip)
	if err != nil {
		return err
	}

	path := imageOutput
	if path == "" {
		path = clip + imageExtension(contentType)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	fmt.Printf("Saved %s (%d bytes)\n", path, len(data))
	return nil
}

// imageExtension picks a file extension for a content type.
func imageExtension(contentType string) string {
	if contentType == "" {
		return ".bin"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
