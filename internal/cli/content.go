package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"learnsync/internal/annotate"
	"learnsync/internal/engine"
	"learnsync/internal/format"
	"learnsync/internal/model"
	"learnsync/internal/store"
	"learnsync/internal/views"

	"github.com/spf13/cobra"
)

// contentKind describes how one content type is listed and shown.
type contentKind[T model.Item] struct {
	kind    model.Kind
	plural  string
	views   func(e *engine.Engine) views.Views[T]
	items   func(st store.State) []T
	columns []string
	row     func(app *App, it T) []string
	doc     func(it T) string
}

type shownItem[T model.Item] struct {
	Item  T               `json:"item"`
	Flags []annotate.Flag `json:"flags"`
}

func newContentCmd[T model.Item](app *App, k contentKind[T], short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   k.plural,
		Short: short,
	}
	cmd.AddCommand(newContentListCmd(app, k))
	cmd.AddCommand(newContentShowCmd(app, k))
	return cmd
}

func newContentListCmd[T model.Item](app *App, k contentKind[T]) *cobra.Command {
	var (
		viewName string
		courseID string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", k.plural),
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			name, err := parseView(viewName)
			if err != nil {
				return err
			}
			sets := e.Snapshot().Sets(k.kind)
			list := []T{}
			tbl := format.Table{Columns: append([]string{"ID", "COURSE"}, append(k.columns, "FLAGS")...)}
			for _, it := range k.views(e).Get(name) {
				if courseID != "" && it.ItemCourseID() != courseID {
					continue
				}
				list = append(list, it)
				row := append([]string{it.ItemID(), courseNameOf(it)}, k.row(app, it)...)
				tbl.Rows = append(tbl.Rows, append(row, flagMarks(sets, it.ItemID())))
			}
			tbl.Data = list
			return writeOut(cmd, app, tbl)
		}),
	}
	cmd.Flags().StringVar(&viewName, "view", string(views.All), "View (all|unread|favorites|archived|hidden|unfinished|finished)")
	cmd.Flags().StringVar(&courseID, "course", "", "Only list this course")
	return cmd
}

func newContentShowCmd[T model.Item](app *App, k contentKind[T]) *cobra.Command {
	var keepUnread bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: fmt.Sprintf("Show one of the %s and mark it read", k.plural),
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id := strings.TrimSpace(args[0])
			st := e.Snapshot()
			i := slices.IndexFunc(k.items(st), func(it T) bool { return it.ItemID() == id })
			if i < 0 {
				return errNotFound(string(k.kind), id)
			}
			it := k.items(st)[i]
			if !keepUnread && st.Sets(k.kind).Unread.Has(id) {
				st = e.SetFlag(k.kind, annotate.FlagUnread, id, false)
			}
			return writeOut(cmd, app, format.Document{
				Markdown: k.doc(it),
				Data:     shownItem[T]{Item: it, Flags: flagsOf(st.Sets(k.kind), id)},
			})
		}),
	}
	cmd.Flags().BoolVar(&keepUnread, "keep-unread", false, "Do not mark the item read")
	return cmd
}

func parseView(s string) (views.Name, error) {
	n := views.Name(strings.ToLower(strings.TrimSpace(s)))
	if n == "" {
		return views.All, nil
	}
	if !slices.Contains(views.Names, n) {
		return "", fmt.Errorf("unknown view: %q", s)
	}
	return n, nil
}

var flagOrder = []annotate.Flag{annotate.FlagUnread, annotate.FlagFavorite, annotate.FlagPinned, annotate.FlagArchived}

func flagsOf(sets annotate.Sets, id string) []annotate.Flag {
	out := []annotate.Flag{}
	for _, f := range flagOrder {
		if sets.Get(f).Has(id) {
			out = append(out, f)
		}
	}
	return out
}

// flagMarks is the compact FLAGS column: u(nread) f(avorite) p(inned) a(rchived).
func flagMarks(sets annotate.Sets, id string) string {
	var b strings.Builder
	for _, f := range flagsOf(sets, id) {
		b.WriteByte(string(f)[0])
	}
	return b.String()
}

func courseNameOf(it model.Item) string {
	switch t := it.(type) {
	case model.Notice:
		return t.CourseName
	case model.Assignment:
		return t.CourseName
	case model.File:
		return t.CourseName
	}
	return it.ItemCourseID()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func newNoticesCmd(app *App) *cobra.Command {
	return newContentCmd(app, contentKind[model.Notice]{
		kind:    model.KindNotice,
		plural:  "notices",
		views:   (*engine.Engine).NoticeViews,
		items:   func(st store.State) []model.Notice { return st.Notices.Items },
		columns: []string{"TITLE", "PUBLISHER", "PUBLISHED"},
		row: func(app *App, n model.Notice) []string {
			return []string{n.Title, n.Publisher, stamp(n.PublishTime)}
		},
		doc: noticeMarkdown,
	}, "Course notices")
}

func newAssignmentsCmd(app *App) *cobra.Command {
	return newContentCmd(app, contentKind[model.Assignment]{
		kind:    model.KindAssignment,
		plural:  "assignments",
		views:   (*engine.Engine).AssignmentViews,
		items:   func(st store.State) []model.Assignment { return st.Assignments.Items },
		columns: []string{"TITLE", "DEADLINE", "STATUS"},
		row: func(app *App, a model.Assignment) []string {
			return []string{a.Title, stamp(a.Deadline), assignmentStatus(a, app.now())}
		},
		doc: assignmentMarkdown,
	}, "Course assignments")
}

func newFilesCmd(app *App) *cobra.Command {
	return newContentCmd(app, contentKind[model.File]{
		kind:    model.KindFile,
		plural:  "files",
		views:   (*engine.Engine).FileViews,
		items:   func(st store.State) []model.File { return st.Files.Items },
		columns: []string{"TITLE", "TYPE", "SIZE", "UPLOADED"},
		row: func(app *App, f model.File) []string {
			return []string{f.Title, f.FileType, f.Size, stamp(f.UploadTime)}
		},
		doc: fileMarkdown,
	}, "Course files")
}

func assignmentStatus(a model.Assignment, now time.Time) string {
	switch {
	case a.Graded:
		return "graded"
	case a.Submitted:
		return "submitted"
	case a.Deadline.After(now):
		return "due"
	case a.LateSubmissionDeadline != nil && a.LateSubmissionDeadline.After(now):
		return "late"
	}
	return "overdue"
}

func noticeMarkdown(n model.Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	fmt.Fprintf(&b, "**%s** · %s · %s\n\n", n.CourseName, n.Publisher, stamp(n.PublishTime))
	b.WriteString(n.Content)
	b.WriteString("\n")
	if n.Attachment != nil {
		fmt.Fprintf(&b, "\nAttachment: %s\n", attachmentLink(*n.Attachment))
	}
	return b.String()
}

func assignmentMarkdown(a model.Assignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "**%s** · due %s", a.CourseName, stamp(a.Deadline))
	if a.LateSubmissionDeadline != nil {
		fmt.Fprintf(&b, " · late until %s", stamp(*a.LateSubmissionDeadline))
	}
	b.WriteString("\n\n")
	if a.Description != "" {
		b.WriteString(a.Description)
		b.WriteString("\n")
	}
	if a.Attachment != nil {
		fmt.Fprintf(&b, "\nAttachment: %s\n", attachmentLink(*a.Attachment))
	}

	b.WriteString("\n## Submission\n\n")
	if !a.Submitted {
		b.WriteString("Not submitted.\n")
	} else {
		if a.SubmitTime != nil {
			fmt.Fprintf(&b, "Submitted %s.\n", stamp(*a.SubmitTime))
		} else {
			b.WriteString("Submitted.\n")
		}
		if a.SubmittedContent != "" {
			fmt.Fprintf(&b, "\n%s\n", a.SubmittedContent)
		}
		if a.SubmittedAttachment != nil {
			fmt.Fprintf(&b, "\nAttachment: %s\n", attachmentLink(*a.SubmittedAttachment))
		}
	}

	if a.Graded {
		b.WriteString("\n## Grade\n\n")
		switch {
		case a.GradeLevel != "":
			b.WriteString(a.GradeLevel)
		case a.Grade != nil:
			fmt.Fprintf(&b, "%g", *a.Grade)
		default:
			b.WriteString("Graded")
		}
		if a.GradeTime != nil {
			fmt.Fprintf(&b, " (%s)", stamp(*a.GradeTime))
		}
		b.WriteString("\n")
		if a.GradeContent != "" {
			fmt.Fprintf(&b, "\n%s\n", a.GradeContent)
		}
	}
	return b.String()
}

func fileMarkdown(f model.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", f.Title)
	fmt.Fprintf(&b, "**%s** · %s · %s · uploaded %s\n\n", f.CourseName, f.FileType, f.Size, stamp(f.UploadTime))
	if f.Description != "" {
		b.WriteString(f.Description)
		b.WriteString("\n")
	}
	if f.DownloadURL != "" {
		fmt.Fprintf(&b, "\nDownload: <%s>\n", f.DownloadURL)
	}
	return b.String()
}

func attachmentLink(a model.Attachment) string {
	label := a.Name
	if a.Size != "" {
		label += " (" + a.Size + ")"
	}
	if a.URL == "" {
		return label
	}
	return fmt.Sprintf("[%s](%s)", label, a.URL)
}
