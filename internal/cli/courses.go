package cli

import (
	"slices"
	"strings"

	"learnsync/internal/engine"
	"learnsync/internal/format"
	"learnsync/internal/model"

	"github.com/spf13/cobra"
)

type courseRow struct {
	model.Course
	Hidden bool `json:"hidden"`
}

func newCoursesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List and hide courses",
	}
	cmd.AddCommand(newCoursesListCmd(app))
	cmd.AddCommand(newCoursesHideCmd(app, true))
	cmd.AddCommand(newCoursesHideCmd(app, false))
	return cmd
}

func newCoursesListCmd(app *App) *cobra.Command {
	var includeHidden bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the synced semester's courses",
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			st := e.Snapshot()
			rows := []courseRow{}
			tbl := format.Table{Columns: []string{"ID", "NAME", "TEACHER", "SCHEDULE", "HIDDEN"}}
			for _, c := range st.Courses.Items {
				hidden := st.Courses.Hidden.Has(c.ID)
				if hidden && !includeHidden {
					continue
				}
				rows = append(rows, courseRow{Course: c, Hidden: hidden})
				tbl.Rows = append(tbl.Rows, []string{c.ID, c.Name, c.TeacherName, strings.Join(c.TimeAndLocation, "; "), yesNo(hidden)})
			}
			tbl.Data = rows
			return writeOut(cmd, app, tbl)
		}),
	}
	cmd.Flags().BoolVar(&includeHidden, "all", false, "Include hidden courses")
	return cmd
}

func newCoursesHideCmd(app *App, hide bool) *cobra.Command {
	use, short := "hide <course-id>...", "Hide courses from the default content views"
	if !hide {
		use, short = "unhide <course-id>...", "Show hidden courses again"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			for _, id := range args {
				e.SetCourseHidden(id, hide)
			}
			return writeOut(cmd, app, map[string]any{"hidden": e.Snapshot().Courses.Hidden})
		}),
	}
}

func newSemestersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semesters",
		Short: "List semesters and pick the one to sync",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the semesters the portal knows about",
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			sem := e.Snapshot().Semesters
			return writeOut(cmd, app, map[string]any{
				"ids":      sem.IDs,
				"current":  sem.Current,
				"selected": sem.Selected,
				"active":   sem.Active(),
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "use [semester-id]",
		Short: "Sync this semester's courses (no id: back to the current semester)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id := ""
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
			}
			sem := e.Snapshot().Semesters
			if id != "" && len(sem.IDs) > 0 && !slices.Contains(sem.IDs, id) {
				return errNotFound("semester", id)
			}
			st := e.SelectSemester(id)
			return writeOut(cmd, app, map[string]any{"active": st.Semesters.Active()})
		}),
	})
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
