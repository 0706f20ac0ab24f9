package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"learnsync/internal/engine"
	"learnsync/internal/store"

	"github.com/spf13/cobra"
)

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change settings (kept across logout)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print all settings, or one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			settings := e.Snapshot().Settings
			if len(args) == 0 {
				return writeOut(cmd, app, settings)
			}
			v, ok := settings[args[0]]
			if !ok {
				return errNotFound("setting", args[0])
			}
			return writeOut(cmd, app, map[string]any{args[0]: v})
		}),
	})

	var record bool
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting; values are read as JSON when they parse, else as text",
		Long: `A plain set replaces the value. With --record the value must be a JSON
object and its fields are merged into the stored record, e.g.

  learnsync settings set alarms '{"eventMinutes": 30}' --record`,
		Args: cobra.ExactArgs(2),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("empty setting key")
			}
			u, err := settingUpdate(key, args[1], record)
			if err != nil {
				return err
			}
			st := e.SetSetting(u)
			return writeOut(cmd, app, map[string]any{key: st.Settings[key]})
		}),
	}
	set.Flags().BoolVar(&record, "record", false, "Merge the JSON object into the stored record")
	cmd.AddCommand(set)
	return cmd
}

func settingUpdate(key, raw string, record bool) (store.SettingUpdate, error) {
	if record {
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
			return store.SettingUpdate{}, fmt.Errorf("--record needs a JSON object, got %q", raw)
		}
		return store.RecordUpdate(key, fields), nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	return store.ScalarUpdate(key, v), nil
}
