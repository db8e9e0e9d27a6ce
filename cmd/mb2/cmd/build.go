package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/manifest"
	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [MANIFEST]",
	Short: "Build boot information or a header from a YAML manifest",
	Long: `Build a Multiboot2 boot information structure or kernel header from a
YAML manifest listing its tags. The end tag is appended automatically and the
result is parsed back before it is written.

Examples:
  mb2 build -o mbi.bin testdata/information.yaml
  mb2 build -f header.yaml -o header.bin --capacity 4096`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		capacity, _ := cmd.Flags().GetInt("capacity")
		if !cmd.Flags().Changed("capacity") {
			capacity = cfg.Builder.Capacity
		}

		path, _ := cmd.Flags().GetString("file")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no manifest given")
		}
		m, err := manifest.Load(path)
		if err != nil {
			return err
		}
		if m.Capacity == 0 {
			m.Capacity = capacity
		}
		buf, err := runBuild(m)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), out, buf)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringP("file", "f", "", "Manifest to build")
	buildCmd.Flags().StringP("out", "o", "-", "Output file, - for stdout")
	buildCmd.Flags().Int("capacity", 0, "Fail instead of growing past this many bytes (0 = unbounded)")
}

// runBuild builds m and checks the result parses.
func runBuild(m *manifest.Manifest) ([]byte, error) {
	buf, err := m.Build()
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	switch m.Kind {
	case manifest.KindHeader:
		_, err = mbh.Parse(buf)
	default:
		_, err = mbi.Parse(buf)
	}
	if err != nil {
		return nil, fmt.Errorf("built structure does not parse: %w", err)
	}
	log.WithFields(logrus.Fields{"kind": m.Kind, "tags": len(m.Tags), "size": len(buf)}).Info("built")
	return buf, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" || path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
