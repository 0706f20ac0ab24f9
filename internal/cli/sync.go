package cli

import (
	"errors"

	"learnsync/internal/engine"
	"learnsync/internal/model"

	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	var (
		courseID    string
		kindNames   []string
		coursesOnly bool
		useSSO      bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch courses and content from the portal",
		Long: `Without flags, refreshes the course list and then every content kind of
every course. --course refreshes one course and leaves the others as they are.
--sso opens the browser sign-on when the portal challenges the saved
credential, then carries on with the sync.`,
		Args: cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			kinds, err := parseKinds(kindNames)
			if err != nil {
				return err
			}
			e.FallBackToBrowser(useSSO)
			ctx := cmd.Context()
			switch {
			case coursesOnly:
				if courseID != "" || len(kinds) > 0 {
					return errors.New("--courses-only cannot be combined with --course or --kind")
				}
				err = e.SyncCourses(ctx)
			case courseID != "":
				err = e.SyncCourse(ctx, courseID, kinds...)
			case len(kinds) > 0:
				var errs []error
				for _, k := range kinds {
					errs = append(errs, e.SyncKind(ctx, k))
				}
				err = errors.Join(errs...)
			default:
				err = e.Sync(ctx)
			}
			if err != nil {
				return err
			}

			st := e.Snapshot()
			return writeOut(cmd, app, map[string]any{
				"semester":    st.Semesters.Active(),
				"courses":     len(st.Courses.Items),
				"notices":     statusOf(st, model.KindNotice, len(st.Notices.Items)),
				"assignments": statusOf(st, model.KindAssignment, len(st.Assignments.Items)),
				"files":       statusOf(st, model.KindFile, len(st.Files.Items)),
			})
		}),
	}
	cmd.Flags().StringVar(&courseID, "course", "", "Only refresh this course")
	cmd.Flags().StringSliceVar(&kindNames, "kind", nil, "Content kinds to refresh (notice|assignment|file; repeatable)")
	cmd.Flags().BoolVar(&coursesOnly, "courses-only", false, "Only refresh the semester and course lists")
	cmd.Flags().BoolVar(&useSSO, "sso", false, "Sign on through the browser if the portal asks for it")
	return cmd
}

func parseKinds(names []string) ([]model.Kind, error) {
	var out []model.Kind
	for _, n := range names {
		k, err := model.ParseKind(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
