package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ntcore/internal/store"
	"github.com/roach88/ntcore/internal/value"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	File       string
	Persistent bool
	Identity   string
}

// SetResult is the set command output.
type SetResult struct {
	Key        string `json:"key"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
	Persistent bool   `json:"persistent"`
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <key> <type> <value>",
		Short: "Set one entry in an entries file",
		Long: `Load an entries file (if it exists), set one entry and save the file back.

Types: boolean, double, string, raw, rpc, boolean_array, double_array,
string_array. Raw values are hex; arrays are comma separated.

Exit codes:
  0 - Entry written
  1 - The entry exists with another type
  2 - Command error (bad type or value, unreadable file)

Examples:
  ntctl set --file robot.db /Preferences/gain double 0.25 --persistent
  ntctl set --file robot.db /auto/modes string_array "left,center,right"`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd.Context(), opts, cmd, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "entries file to update (required)")
	cmd.Flags().BoolVar(&opts.Persistent, "persistent", false, "mark the entry persistent")
	cmd.Flags().StringVar(&opts.Identity, "identity", "ntctl", "identity recorded as the file's writer")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSet(ctx context.Context, opts *SetOptions, cmd *cobra.Command, key, kindName, text string) error {
	f := opts.formatter(cmd)

	kind, err := value.ParseKind(kindName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid type", err)
	}
	v, err := value.Parse(kind, text)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	inst := opts.openInstance(cmd)
	defer inst.Close()
	inst.SetNetworkIdentity(opts.Identity)

	if store.Exists(opts.File) {
		warnings, err := inst.LoadEntries(ctx, opts.File, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load entries", err)
		}
		for _, w := range warnings {
			f.VerboseLog("warning: %s", w)
		}
	}

	entry := inst.GetEntry(key)
	if err := entry.SetValue(v); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("cannot set %s", key), err)
	}
	if opts.Persistent {
		entry.SetPersistent()
	}

	if err := inst.SaveEntries(ctx, opts.File, ""); err != nil {
		return WrapExitError(ExitCommandError, "failed to save entries", err)
	}

	result := SetResult{
		Key:        key,
		Type:       kind.String(),
		Value:      v.ObjectValue(),
		Persistent: entry.IsPersistent(),
	}
	if f.IsJSON() {
		return f.Success(result)
	}
	f.Printf("set %s = %s %s\n", key, kind, displayValue(v.ObjectValue()))
	return nil
}
