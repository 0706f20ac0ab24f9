package cli

import (
	"errors"
	"fmt"
	"slices"

	"learnsync/internal/engine"
	"learnsync/internal/model"

	"github.com/spf13/cobra"
)

func newSubmitCmd(app *App) *cobra.Command {
	var (
		content  string
		filePath string
		remove   bool
		progress bool
		useSSO   bool
	)
	cmd := &cobra.Command{
		Use:   "submit <assignment-id>",
		Short: "Hand in an assignment",
		Long: `Submits text and/or a file for an assignment, then refreshes that course's
assignments so the submission shows up. --remove deletes the attachment
uploaded earlier.`,
		Args: cobra.ExactArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			if filePath != "" && remove {
				return errors.New("--file and --remove cannot be combined")
			}
			e.FallBackToBrowser(useSSO)
			sub := engine.Submission{
				AssignmentID:     args[0],
				Content:          content,
				FilePath:         filePath,
				RemoveAttachment: remove,
			}
			if progress {
				last := -10
				sub.OnProgress = func(sent, total int64) {
					if total <= 0 {
						return
					}
					pct := int(sent * 100 / total)
					if pct/10 != last/10 {
						last = pct
						fmt.Fprintf(cmd.ErrOrStderr(), "uploading %d%%\n", pct)
					}
				}
			}
			if err := e.Submit(cmd.Context(), sub); err != nil {
				return err
			}

			items := e.Snapshot().Assignments.Items
			i := slices.IndexFunc(items, func(a model.Assignment) bool { return a.ID == args[0] })
			if i < 0 {
				return errNotFound("assignment", args[0])
			}
			return writeOut(cmd, app, items[i])
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "Submission text")
	cmd.Flags().StringVar(&filePath, "file", "", "File to upload as the attachment")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the previously uploaded attachment")
	cmd.Flags().BoolVar(&progress, "progress", false, "Report upload progress on stderr")
	cmd.Flags().BoolVar(&useSSO, "sso", false, "Sign on through the browser if the portal asks for it")
	return cmd
}
