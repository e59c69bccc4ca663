package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MacJediWizard/aurospan/internal/db"
	"github.com/MacJediWizard/aurospan/internal/models"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newApplicationsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "applications",
		Aliases: []string{"apps"},
		Short:   "Review submitted permit applications",
	}

	cmd.AddCommand(
		newApplicationsListCmd(opts),
		newApplicationsShowCmd(opts),
	)

	return cmd
}

func newApplicationsListCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications, most recent application date first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}

			database, err := openDatabase(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer database.Close()

			apps, err := database.ListPermitApplications(cmd.Context())
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), apps)
			}
			return writeApplicationTable(cmd.OutOrStdout(), apps)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func newApplicationsShowCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one application in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid application id %q", args[0])
			}

			database, err := openDatabase(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer database.Close()

			app, err := database.GetPermitApplication(cmd.Context(), id)
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("application %d not found", id)
			}
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), app)
			}
			return writeApplicationDetail(cmd.OutOrStdout(), app)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func checkOutput(output string) error {
	switch output {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeApplicationTable(w io.Writer, apps []*models.PermitApplication) error {
	if len(apps) == 0 {
		_, err := fmt.Fprintln(w, "No applications on file.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREW\tPERMIT\tAPPLIED\tFILES")
	for _, app := range apps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			app.ID, app.FullName, orDash(app.Crew), app.PermitType,
			formatDate(app), len(app.SupportingFiles))
	}
	return tw.Flush()
}

func writeApplicationDetail(w io.Writer, app *models.PermitApplication) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", strconv.FormatInt(app.ID, 10)},
		{"Full name", app.FullName},
		{"Alias", orDash(app.Alias)},
		{"Crew", orDash(app.Crew)},
		{"Contact address", orDash(app.ContactAddress)},
		{"Preferred contact", orDash(app.PreferredContact)},
		{"Other contact", orDash(app.OtherCorrText)},
		{"Permit type", app.PermitType},
		{"Other permit", orDash(app.OtherPermitText)},
		{"Details", orDash(app.PermitDetails)},
		{"Signature", app.ApplicantSignature},
		{"Application date", formatDate(app)},
		{"Submitted", app.SubmittedAt.UTC().Format("2006-01-02 15:04 UTC")},
		{"Files", orDash(strings.Join(app.SupportingFiles, ", "))},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func formatDate(app *models.PermitApplication) string {
	if app.ApplicationDate.IsZero() {
		return "-"
	}
	return app.ApplicationDate.Format("2006-01-02 15:04 -07:00")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
