package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"boffo/internal"
	"boffo/internal/boffo"
	"boffo/internal/credentials"
	"boffo/internal/sheet"
)

const defaultOut = "boffo-results.xlsx"

func newBarcodesCommand(a *app) *cobra.Command {
	var file, out string
	cmd := &cobra.Command{
		Use:   "barcodes [BARCODE...]",
		Short: "Look up items by barcode, one output row per barcode in input order",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args
			if file != "" {
				fromFile, err := readKeysFile(file)
				if err != nil {
					return err
				}
				keys = append(keys, fromFile...)
			}
			host := a.host(cmd)
			result, err := a.svc.LookupByBarcodes(cmd.Context(), host, keys)
			if err != nil {
				return err
			}
			return finish(cmd, host, result, out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read barcodes from an .xlsx sheet or a text file with one per line")
	cmd.Flags().StringVarP(&out, "out", "o", defaultOut, "workbook to write the results to")
	return cmd
}

func newRangeCommand(a *app) *cobra.Command {
	var location, out string
	cmd := &cobra.Command{
		Use:   "range FIRST LAST",
		Short: "Look up every item shelved between two call numbers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := a.host(cmd)
			result, err := a.svc.LookupByCallNumberRange(cmd.Context(), host, args[0], args[1], location)
			if err != nil {
				return err
			}
			return finish(cmd, host, result, out)
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "Any", "location id to search, or Any")
	cmd.Flags().StringVarP(&out, "out", "o", defaultOut, "workbook to write the results to")
	return cmd
}

func newLocationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List FOLIO locations and their ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locs, err := a.svc.ListLocations(cmd.Context(), a.host(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID")
			for _, l := range locs {
				fmt.Fprintf(tw, "%s\t%s\n", l.Name, l.ID)
			}
			return tw.Flush()
		},
	}
}

func newFieldsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Show which item fields are written to the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			states, err := a.svc.FieldDescriptors(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range states {
				mark := " "
				if s.Enabled {
					mark = "x"
				}
				note := ""
				if s.Required {
					note = " (required)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s%s\n", mark, s.Name, note)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set FIELD...",
		Short: "Write exactly these fields, plus the required ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.SetEnabledFieldNames(cmd.Context(), args); err != nil {
				return err
			}
			names, err := a.svc.GetEnabledFieldNames(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enabled: %s\n", strings.Join(names, ", "))
			return nil
		},
	})
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to FOLIO and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := a.prompter.PromptCredentials(cmd.Context(), credentials.Credentials{}, nil)
			if err != nil {
				return err
			}
			if err := a.svc.Login(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored FOLIO token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.SetOutput(os.Stderr)
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			srv := internal.NewServer(a.svc, a.cfg, a.metrics)
			log.Println("Starting Boffo server...")
			log.Printf("Property store: %s", a.cfg.Store)
			log.Printf("Metrics enabled: %v", a.cfg.EnableMetrics)
			return srv.ListenAndServe(cmd.Context(), addr, 30*time.Second)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from BOFFO_LISTEN_ADDR)")
	return cmd
}

// host builds a workbook host that prompts on the terminal and prints
// progress to stderr.
func (a *app) host(cmd *cobra.Command) *boffo.WorkbookHost {
	host := boffo.NewWorkbookHost(nil, a.prompter)
	host.OnNotify = func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
	return host
}

func finish(cmd *cobra.Command, host *boffo.WorkbookHost, result *boffo.OperationResult, out string) error {
	if err := host.Workbook.Save(out); err != nil {
		return fmt.Errorf("failed to save %s: %w", out, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s (sheet %q).\n", len(result.Rows), out, result.Sheet)
	return nil
}

// readKeysFile reads barcodes from an .xlsx workbook, or from a text file
// with one barcode per line.
func readKeysFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return sheet.ReadKeys(f)
	}
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			keys = append(keys, line)
		}
	}
	return keys, sc.Err()
}
