package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/roach88/ntcore/internal/nt"
	"github.com/roach88/ntcore/internal/store"
	"github.com/roach88/ntcore/internal/value"
)

// EntriesOptions holds flags for the entries command.
type EntriesOptions struct {
	*RootOptions
	File   string
	Prefix string
	Filter string
}

// EntryRow is one listed entry. The expr tags name the variables a
// --filter expression can use.
type EntryRow struct {
	Name       string `json:"name" expr:"name"`
	Type       string `json:"type" expr:"type"`
	Value      any    `json:"value" expr:"value"`
	Persistent bool   `json:"persistent" expr:"persistent"`
}

// EntriesResult is the entries command output.
type EntriesResult struct {
	Entries  []EntryRow `json:"entries"`
	SavedBy  string     `json:"saved_by,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
}

// NewEntriesCommand creates the entries command.
func NewEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntriesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List the entries of an entries file",
		Long: `Load an entries file into a fresh instance and list its entries.

--filter takes a boolean expression over name, type, value and
persistent; only entries for which it is true are listed.

Exit codes:
  0 - Entries listed
  2 - Command error (missing file, bad filter, unreadable file)

Examples:
  ntctl entries --file robot.db
  ntctl entries --file robot.db --prefix /SmartDashboard
  ntctl entries --file robot.db --filter 'type == "double" && value > 1'
  ntctl entries --file robot.db --filter 'persistent' --format json

The identity of the instance that last saved the file is shown after the
entry count.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntries(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "entries file to read (required)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only load and list entries under this prefix")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "boolean filter expression")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEntries(ctx context.Context, opts *EntriesOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if !store.Exists(opts.File) {
		return NewExitError(ExitCommandError, fmt.Sprintf("entries file not found: %s", opts.File))
	}

	filter, err := compileFilter(opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --filter expression", err)
	}

	inst := opts.openInstance(cmd)
	defer inst.Close()

	warnings, err := inst.LoadEntries(ctx, opts.File, opts.Prefix)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load entries", err)
	}

	rows, err := filterRows(listEntries(inst, opts.Prefix), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "filter failed", err)
	}

	savedBy, err := readSavedBy(ctx, opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read file metadata", err)
	}

	result := EntriesResult{Entries: rows, SavedBy: savedBy, Warnings: warnings}
	if f.IsJSON() {
		return f.Success(result)
	}

	printEntries(f, result)
	return nil
}

// readSavedBy returns the identity of the instance that wrote path, or ""
// for files saved without one.
func readSavedBy(ctx context.Context, path string) (string, error) {
	s, err := store.OpenExisting(path)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.ReadMeta(ctx, store.MetaIdentity)
}

// listEntries returns the entries under prefix sorted by name.
func listEntries(inst *nt.Instance, prefix string) []EntryRow {
	infos := inst.GetEntryInfo(prefix, value.AllKinds)
	rows := make([]EntryRow, 0, len(infos))
	for _, info := range infos {
		v := inst.GetEntry(info.Name).Value()
		rows = append(rows, EntryRow{
			Name:       info.Name,
			Type:       info.Type.String(),
			Value:      v.ObjectValue(),
			Persistent: info.Flags&nt.Persistent != 0,
		})
	}
	slices.SortFunc(rows, func(a, b EntryRow) int {
		return strings.Compare(a.Name, b.Name)
	})
	return rows
}

// compileFilter compiles a --filter expression. An empty expression
// yields a nil program, which matches everything.
func compileFilter(filter string) (*vm.Program, error) {
	if strings.TrimSpace(filter) == "" {
		return nil, nil
	}
	return expr.Compile(filter, expr.Env(EntryRow{}), expr.AsBool())
}

func filterRows(rows []EntryRow, prg *vm.Program) ([]EntryRow, error) {
	if prg == nil {
		return rows, nil
	}
	out := make([]EntryRow, 0, len(rows))
	for _, row := range rows {
		res, err := expr.Run(prg, row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", row.Name, err)
		}
		if keep, _ := res.(bool); keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func printEntries(f *OutputFormatter, result EntriesResult) {
	c := f.colors()
	for _, w := range result.Warnings {
		fmt.Fprintf(f.GetErrWriter(), "%s %s\n", c.Warning("warning:"), w)
	}
	for _, row := range result.Entries {
		line := fmt.Sprintf("%s %s %s", c.Name(row.Name), c.Kind(row.Type), displayValue(row.Value))
		if row.Persistent {
			line += " " + c.Flag("[persistent]")
		}
		f.Printf("%s\n", line)
	}
	f.Printf("%d entries\n", len(result.Entries))
	if result.SavedBy != "" {
		f.Printf("saved by %s\n", result.SavedBy)
	}
}

// displayValue formats a payload the way Value.String does, with strings
// quoted.
func displayValue(payload any) string {
	v, err := value.FromAny(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	if s, err := v.GetString(); err == nil {
		return strconv.Quote(s)
	}
	return v.String()
}
