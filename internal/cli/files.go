package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rescale/record-files/internal/columns"
	"github.com/rescale/record-files/internal/constants"
	"github.com/rescale/record-files/internal/models"
	"github.com/rescale/record-files/internal/navigation"
	"github.com/rescale/record-files/internal/state"
)

// newListCmd creates the 'list' command.
func newListCmd() *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the files attached to the record",
		Long: `List the files attached to the record, using the columns the view
configuration enables.

Examples:
  record-files list --record 001xx000003DGb2AAG
  record-files list --all
  record-files list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(GetContext())
			if err != nil {
				return err
			}
			defer s.Close()

			view := s.fm.View()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, view)
			}
			printView(out, view, all)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show every file, ignoring show_number_of_records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full view snapshot as JSON")
	return cmd
}

// newColumnsCmd creates the 'columns' command.
func newColumnsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show the table columns and row actions of the view",
		Long: `Show the columns and row actions derived from the view configuration.
No gateway call is made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cols := columns.Build(cfg.View.Normalized())
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, cols)
			}
			printColumns(out, cols)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the column descriptors as JSON")
	return cmd
}

// newDeleteCmd creates the 'delete' command.
func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Delete files permanently",
		Long: `Delete files permanently. Each id may be a file id or a content
document id from 'record-files list --json'. The list is reloaded afterwards.

Examples:
  record-files delete 069xx0000001AbC
  record-files delete 069xx0000001AbC 069xx0000001AbD --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := resolveRows(s.fm, args)
			if err != nil {
				return err
			}
			if err := s.fm.SelectRows(rows); err != nil {
				return err
			}
			if !s.fm.IsDeleteEnabled() {
				return fmt.Errorf("delete is not enabled for this view")
			}
			if err := s.fm.OpenDeleteModal(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("You are about to delete %d file(s). This cannot be undone.", len(rows))) {
				fmt.Fprintln(out, "Deletion cancelled")
				return s.fm.CloseDeleteModal()
			}

			if err := s.fm.ConfirmDelete(ctx); err != nil {
				return userError(err)
			}
			fmt.Fprintf(out, "Deleted %d file(s). %s\n", len(rows), s.fm.Title())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// newRemoveCmd creates the 'remove' command.
func newRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Unlink a file from the record without deleting it",
		Long: `Unlink a file from the record. The file itself is kept and stays
attached to any other record.

Examples:
  record-files remove 069xx0000001AbC --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			row, err := triggerRowAction(s.fm, args[0], constants.ActionRemoveFromRecord)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes && !confirm(cmd.InOrStdin(), out, "Remove this file from the record?") {
				fmt.Fprintln(out, "Removal cancelled")
				return s.fm.CloseRemoveModal()
			}

			if err := s.fm.ConfirmRemove(ctx); err != nil {
				return userError(err)
			}
			fmt.Fprintf(out, "Removed %s from record %s\n", row.ContentDocumentID, s.cfg.View.RecordID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// newRowActionCmd creates a command that runs a navigating row action and
// prints the resolved URL.
func newRowActionCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(GetContext())
			if err != nil {
				return err
			}
			defer s.Close()

			nav := s.bus.Subscribe(navigation.EventNavigate)
			if _, err := triggerRowAction(s.fm, args[0], action); err != nil {
				return err
			}

			select {
			case e := <-nav:
				if ev, ok := e.(*navigation.NavigateEvent); ok {
					fmt.Fprintln(cmd.OutOrStdout(), ev.URL)
					return nil
				}
			default:
			}
			return fmt.Errorf("no page to open for %s", args[0])
		},
	}
}

// triggerRowAction checks that action is on the row menu of the view, then
// runs it for the row matching id.
func triggerRowAction(fm *state.FileManager, id, action string) (models.RowRef, error) {
	enabled := false
	for _, a := range columns.RowActions(fm.Config()) {
		if a.Name == action {
			enabled = true
			break
		}
	}
	if !enabled {
		return models.RowRef{}, fmt.Errorf("action %s is not enabled for this view", action)
	}

	rows, err := resolveRows(fm, []string{id})
	if err != nil {
		return models.RowRef{}, err
	}
	if err := fm.TriggerRowAction(rows[0], action); err != nil {
		return models.RowRef{}, err
	}
	return rows[0], nil
}

// resolveRows maps file ids or content document ids onto loaded rows.
func resolveRows(fm *state.FileManager, ids []string) ([]models.RowRef, error) {
	files := fm.Files()
	rows := make([]models.RowRef, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, f := range files {
			if f.FileID == id || f.ContentDocumentID == id {
				rows = append(rows, f.Ref())
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no file %q is attached to the record", id)
		}
	}
	return rows, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printView renders the title, the visible rows and the view-all link.
func printView(w io.Writer, view state.View, all bool) {
	fmt.Fprintln(w, view.Title)
	if view.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", view.Error)
		return
	}
	if len(view.Files) == 0 {
		fmt.Fprintln(w, "No files attached")
		return
	}

	rows := view.Files
	if !all && view.VisibleRows < len(rows) {
		rows = rows[:view.VisibleRows]
	}

	var cols []columns.Column
	for _, c := range view.Columns {
		if c.Type != columns.TypeAction {
			cols = append(cols, c)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, 0, len(cols)+1)
	headers = append(headers, "ID")
	for _, c := range cols {
		headers = append(headers, strings.ToUpper(c.Label))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		cells := make([]string, 0, len(cols)+1)
		cells = append(cells, r.ContentDocumentID)
		for _, c := range cols {
			cells = append(cells, cellValue(r, c))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	if len(rows) < len(view.Files) {
		fmt.Fprintf(w, "Showing %d of %d files (use --all for every file)\n", len(rows), len(view.Files))
	}
	if view.ShowViewAll && view.TitleURL != "" {
		fmt.Fprintf(w, "View all: %s\n", view.TitleURL)
	}
}

// cellValue returns the text a column shows: the label field for links,
// the field itself otherwise.
func cellValue(r models.FileRecord, c columns.Column) string {
	if c.TypeAttributes != nil && c.TypeAttributes.LabelField != "" {
		return r.Field(c.TypeAttributes.LabelField)
	}
	return r.Field(c.FieldName)
}

func printColumns(w io.Writer, cols []columns.Column) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tFIELD\tTYPE\tWIDTH")
	var actions []columns.Action
	for _, c := range cols {
		if c.Type == columns.TypeAction {
			actions = c.TypeAttributes.RowActions
			continue
		}
		width := "-"
		if c.InitialWidth > 0 {
			width = fmt.Sprint(c.InitialWidth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Label, c.FieldName, c.Type, width)
	}
	tw.Flush()

	if len(actions) == 0 {
		fmt.Fprintln(w, "\nNo row actions")
		return
	}
	fmt.Fprintln(w, "\nRow actions:")
	for _, a := range actions {
		fmt.Fprintf(w, "  %-20s %s\n", a.Name, a.Label)
	}
}
