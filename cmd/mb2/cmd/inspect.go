package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/inspect"
	"github.com/ssargent/mb2/pkg/mbi"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Validate and list a Multiboot2 boot information dump",
	Long: `Validate a boot information structure, as handed to a kernel in EBX,
and list its tags. The file must start with the total_size field.

Examples:
  mb2 inspect mbi.bin
  mb2 inspect --output json mbi.bin
  mb2 inspect --relaxed --offset 0x9000 memory.img
  mb2 inspect --format header vmlinux`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		offset, _ := cmd.Flags().GetInt64("offset")
		relaxed, _ := cmd.Flags().GetBool("relaxed")
		kind, _ := cmd.Flags().GetString("format")

		format, err := inspect.ParseFormat(output)
		if err != nil {
			return err
		}
		data, err := readInput(args[0], offset)
		if err != nil {
			return err
		}
		switch kind {
		case "mbi":
			return runInspect(cmd.OutOrStdout(), data, format, relaxed || cfg.Parse.RelaxedTermination)
		case "header":
			return runHeader(cmd.OutOrStdout(), data, format, false)
		}
		return fmt.Errorf("unknown input format %q (want mbi or header)", kind)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
	inspectCmd.Flags().Int64("offset", 0, "Byte offset of the structure within FILE")
	inspectCmd.Flags().String("format", "mbi", "What FILE holds: mbi, or header to search a kernel image")
	inspectCmd.Flags().Bool("relaxed", false, "Accept a tag list that ends at total_size without an end tag")
}

func runInspect(w io.Writer, data []byte, format inspect.Format, relaxed bool) error {
	var opts []mbi.ParseOption
	if relaxed {
		opts = append(opts, mbi.WithRelaxedTermination())
	}
	bi, err := mbi.Parse(codec.Aligned(data), opts...)
	if err != nil {
		log.WithField("cause", codec.CauseName(err)).Debug("boot information rejected")
		return fmt.Errorf("invalid boot information: %w", err)
	}
	log.WithFields(logrus.Fields{"size": bi.TotalSize(), "tags": bi.Count()}).Debug("boot information parsed")
	return inspect.Render(w, inspect.Information(bi), format)
}

// readInput reads FILE, or stdin for "-", starting at offset.
func readInput(path string, offset int64) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, fmt.Errorf("offset %#x outside %d-byte input", offset, len(data))
	}
	return data[offset:], nil
}
