package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/inspect"
	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
	"github.com/ssargent/mb2/pkg/storage"
)

// dumpsCmd groups the archive commands
var dumpsCmd = &cobra.Command{
	Use:   "dumps",
	Short: "Manage the local dump archive",
	Long: `Add, list, show and remove archived dumps without running the server.
The archive lives under the data directory.`,
}

var dumpsAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Validate a dump and add it to the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = args[0]
		}
		data, err := readInput(args[0], 0)
		if err != nil {
			return err
		}
		if _, err := analyze(kind, data); err != nil {
			return err
		}
		return withStore(func(s storage.DumpStore) error {
			d, err := s.Create(kind, name, data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.ID.String())
			return nil
		})
	},
}

var dumpsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived dumps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s storage.DumpStore) error {
			dumps, err := s.List()
			if err != nil {
				return err
			}
			return printDumps(cmd.OutOrStdout(), dumps)
		})
	},
}

var dumpsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show the report of an archived dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, err := inspect.ParseFormat(output)
		if err != nil {
			return err
		}
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid dump ID: %w", err)
		}
		return withStore(func(s storage.DumpStore) error {
			d, data, err := s.Read(id)
			if err != nil {
				return err
			}
			report, err := analyze(d.Kind, data)
			if err != nil {
				return err
			}
			return inspect.Render(cmd.OutOrStdout(), report, format)
		})
	},
}

var dumpsRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Remove a dump from the archive",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid dump ID: %w", err)
		}
		return withStore(func(s storage.DumpStore) error {
			return s.Delete(id)
		})
	},
}

func init() {
	rootCmd.AddCommand(dumpsCmd)
	dumpsCmd.AddCommand(dumpsAddCmd, dumpsListCmd, dumpsShowCmd, dumpsRemoveCmd)

	dumpsAddCmd.Flags().String("kind", "mbi", "What FILE holds: mbi or header")
	dumpsAddCmd.Flags().String("name", "", "Label for the dump (default: FILE)")
	dumpsShowCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
}

func withStore(fn func(storage.DumpStore) error) error {
	if container == nil {
		return fmt.Errorf("dependency container not initialized")
	}
	s, err := container.GetStoreFactory().OpenStore(cfg.DataDir, log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// analyze validates data as kind and reports it.
func analyze(kind string, data []byte) (*inspect.Report, error) {
	switch kind {
	case "mbi":
		var opts []mbi.ParseOption
		if cfg.Parse.RelaxedTermination {
			opts = append(opts, mbi.WithRelaxedTermination())
		}
		bi, err := mbi.Parse(codec.Aligned(data), opts...)
		if err != nil {
			return nil, fmt.Errorf("invalid boot information: %w", err)
		}
		return inspect.Information(bi), nil
	case "header":
		h, off, err := mbh.Find(data)
		if err != nil {
			return nil, fmt.Errorf("invalid kernel image: %w", err)
		}
		return inspect.Header(h, off), nil
	}
	return nil, fmt.Errorf("unknown kind %q (want mbi or header)", kind)
}

func printDumps(w io.Writer, dumps []storage.Dump) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSIZE\tCREATED\tNAME")
	for _, d := range dumps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.ID, d.Kind, d.Size, d.Created.Local().Format(time.DateTime), d.Name)
	}
	return tw.Flush()
}
