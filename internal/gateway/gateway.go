// Package gateway talks to the learning portal: login, course listing,
// per-course content and assignment submission.
package gateway

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"learnsync/internal/model"
)

// Gateway establishes portal sessions.
type Gateway interface {
	// Login authenticates cred. fp carries the anti-forgery fields captured
	// by a browser sign-on and may be nil.
	Login(ctx context.Context, cred model.Credential, fp *model.FingerprintFields) (Session, error)
}

// Session is an authenticated handle. It is passed explicitly to every
// consumer; there is no ambient current session.
type Session interface {
	Credential() model.Credential
	UserInfo(ctx context.Context) (model.UserInfo, error)
	SemesterIDs(ctx context.Context) ([]string, error)
	CurrentSemester(ctx context.Context) (model.Semester, error)
	Courses(ctx context.Context, semesterID string) ([]model.Course, error)
	Notices(ctx context.Context, courseID string) ([]model.Notice, error)
	Assignments(ctx context.Context, courseID string) ([]model.Assignment, error)
	Files(ctx context.Context, courseID string) ([]model.File, error)
	Submit(ctx context.Context, req SubmitRequest) error
}

type Upload struct {
	Name   string
	Reader io.Reader
}

type SubmitRequest struct {
	StudentHomeworkID string
	Content           string
	Attachment        *Upload
	// Remove deletes the previously submitted attachment.
	Remove bool
	// OnProgress is called as the upload body is sent.
	OnProgress func(sent, total int64)
}

// AllContents fetches every course with at most limit requests in flight.
// Results keep the order of courseIDs. Any failure aborts the whole call.
func AllContents[T any](ctx context.Context, courseIDs []string, limit int, fetch func(context.Context, string) ([]T, error)) ([]T, error) {
	if limit <= 0 {
		limit = 4
	}
	parts := make([][]T, len(courseIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range courseIDs {
		g.Go(func() error {
			items, err := fetch(gctx, id)
			if err != nil {
				return err
			}
			parts[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []T
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
