package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <file.csv>",
		Short: "Import donations from a CSV file",
		Long: `Import donations from a CSV file with the header
campaignId,amount,donorEmail,donorFirstName,donorLastName,paymentMethod,message

Exit status is 0 when every row was imported, 2 when some rows failed and
1 when nothing was imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the import result as JSON")
	return cmd
}

func (a *app) runImport(ctx context.Context, out io.Writer, path string, asJSON bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	var (
		result   *core.ImportResult
		importID string
	)
	if err := core.CheckUpload(name, info.Size()); err != nil {
		result = core.RejectedResult(err)
	} else {
		run, err := a.service.ImportDonations(ctx, core.ImportRequest{
			FileName: name,
			Source:   core.SourceCLI,
			Size:     info.Size(),
		}, f)
		if err != nil {
			return errors.New(core.FormatUserError(err))
		}
		result = run.Result
		importID = run.ID.String()
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printSummary(out, name, importID, result)
	}
	return outcomeError(result.Outcome())
}

func printSummary(out io.Writer, name, importID string, r *core.ImportResult) {
	if importID != "" {
		fmt.Fprintf(out, "Import %s (%s)\n", importID, name)
	} else {
		fmt.Fprintf(out, "Import rejected (%s)\n", name)
	}
	fmt.Fprintf(out, "  rows: %d  imported: %d  failed: %d\n", r.TotalRows, r.SuccessCount, r.FailureCount)
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  %s\n", e)
	}
}
