package cli

import (
	"learnsync/internal/annotate"
	"learnsync/internal/engine"
	"learnsync/internal/model"
	"learnsync/internal/store"

	"github.com/spf13/cobra"
)

func newFlagCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Mark items unread, favorite, pinned or archived",
		Long: `Flags are kept next to the synced content and survive every sync. Ids
are not checked against the synced lists.`,
	}
	cmd.AddCommand(newFlagSetCmd(app, true))
	cmd.AddCommand(newFlagSetCmd(app, false))
	return cmd
}

func newFlagSetCmd(app *App, value bool) *cobra.Command {
	use, short := "set <kind> <flag> <id>...", "Add items to a flag set"
	if !value {
		use, short = "unset <kind> <flag> <id>...", "Remove items from a flag set"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(3),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			flag, err := annotate.ParseFlag(args[1])
			if err != nil {
				return err
			}
			ids := args[2:]
			var st store.State
			if len(ids) == 1 {
				st = e.SetFlag(kind, flag, ids[0], value)
			} else {
				st = e.SetFlagBulk(kind, flag, ids, value)
			}
			return writeOut(cmd, app, map[string]any{
				"kind": kind,
				"flag": flag,
				"ids":  st.Sets(kind).Get(flag),
			})
		}),
	}
}

func newReadAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all <kind>",
		Short: "Mark every item of a kind read",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			kind, err := model.ParseKind(args[0])
			if err != nil {
				return err
			}
			st := e.MarkAllRead(kind)
			return writeOut(cmd, app, map[string]any{"kind": kind, "unread": st.Sets(kind).Unread.Len()})
		}),
	}
}
