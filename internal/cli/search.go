package cli

import (
	"slices"
	"strconv"
	"strings"

	"learnsync/internal/engine"
	"learnsync/internal/format"
	"learnsync/internal/model"
	"learnsync/internal/views"

	"github.com/spf13/cobra"
)

func newSearchCmd(app *App) *cobra.Command {
	var (
		kindNames []string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Fuzzy search notices, assignments and files",
		Long: `Each kind is ranked on its own. Title hits weigh most, then body text,
then publisher and course name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			kinds, err := parseKinds(kindNames)
			if err != nil {
				return err
			}
			want := func(k model.Kind) bool { return len(kinds) == 0 || slices.Contains(kinds, k) }

			res := e.Search(strings.Join(args, " "))
			if !want(model.KindNotice) {
				res.Notices = []views.Match[model.Notice]{}
			}
			if !want(model.KindAssignment) {
				res.Assignments = []views.Match[model.Assignment]{}
			}
			if !want(model.KindFile) {
				res.Files = []views.Match[model.File]{}
			}
			if limit > 0 {
				res.Notices = truncate(res.Notices, limit)
				res.Assignments = truncate(res.Assignments, limit)
				res.Files = truncate(res.Files, limit)
			}

			tbl := format.Table{Columns: []string{"KIND", "ID", "COURSE", "TITLE", "SCORE", "MATCHED"}, Data: res}
			tbl.Rows = appendMatches(tbl.Rows, model.KindNotice, res.Notices, func(n model.Notice) string { return n.Title })
			tbl.Rows = appendMatches(tbl.Rows, model.KindAssignment, res.Assignments, func(a model.Assignment) string { return a.Title })
			tbl.Rows = appendMatches(tbl.Rows, model.KindFile, res.Files, func(f model.File) string { return f.Title })
			return writeOut(cmd, app, tbl)
		}),
	}
	cmd.Flags().StringSliceVar(&kindNames, "kind", nil, "Only search these kinds (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keep at most this many matches per kind")
	return cmd
}

func truncate[T any](ms []views.Match[T], n int) []views.Match[T] {
	if len(ms) > n {
		return ms[:n]
	}
	return ms
}

func appendMatches[T model.Item](rows [][]string, kind model.Kind, ms []views.Match[T], title func(T) string) [][]string {
	for _, m := range ms {
		rows = append(rows, []string{
			string(kind),
			m.Item.ItemID(),
			courseNameOf(m.Item),
			title(m.Item),
			strconv.FormatFloat(m.Score, 'f', 2, 64),
			strings.Join(m.Fields, ","),
		})
	}
	return rows
}
