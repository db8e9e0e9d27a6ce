package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/inspect"
	"github.com/ssargent/mb2/pkg/mbh"
)

// headerCmd represents the header command
var headerCmd = &cobra.Command{
	Use:   "header IMAGE",
	Short: "Find and validate the Multiboot2 header of a kernel image",
	Long: `Search the start of a kernel image for a Multiboot2 header, validate
it and list its tags. Required tags this tool does not understand are
reported as warnings, since a boot loader would refuse the image.

Examples:
  mb2 header vmlinux
  mb2 header --output yaml kernel.elf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		strict, _ := cmd.Flags().GetBool("strict")

		format, err := inspect.ParseFormat(output)
		if err != nil {
			return err
		}
		data, err := readInput(args[0], 0)
		if err != nil {
			return err
		}
		return runHeader(cmd.OutOrStdout(), data, format, strict)
	},
}

func init() {
	rootCmd.AddCommand(headerCmd)
	headerCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
	headerCmd.Flags().Bool("strict", false, "Fail when the header has required tags that are not understood")
}

func runHeader(w io.Writer, image []byte, format inspect.Format, strict bool) error {
	h, off, err := mbh.Find(image)
	if err != nil {
		log.WithField("cause", codec.CauseName(err)).Debug("header rejected")
		return fmt.Errorf("invalid kernel image: %w", err)
	}
	report := inspect.Header(h, off)
	if err := inspect.Render(w, report, format); err != nil {
		return err
	}
	if unsupported := h.UnsupportedRequired(); strict && len(unsupported) > 0 {
		return fmt.Errorf("%d required header tags are not understood", len(unsupported))
	}
	return nil
}
