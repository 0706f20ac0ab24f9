// Package reconcile fetches course content from the portal and merges it
// into the store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"learnsync/internal/gateway"
	"learnsync/internal/model"
	"learnsync/internal/order"
	"learnsync/internal/store"
)

var ErrUnknownCourse = errors.New("course not in course list")

// SessionSource hands out the active portal session.
type SessionSource interface {
	Session() (gateway.Session, error)
}

type Options struct {
	// Concurrency bounds per-course requests during bulk fetches.
	Concurrency int
	Now         func() time.Time
	Logger      *zap.Logger
}

type Reconciler struct {
	sessions    SessionSource
	st          *store.Store
	log         *zap.Logger
	now         func() time.Time
	concurrency int
}

func New(sessions SessionSource, st *store.Store, opts Options) *Reconciler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	n := opts.Concurrency
	if n <= 0 {
		n = 4
	}
	return &Reconciler{sessions: sessions, st: st, log: log.Named("reconcile"), now: now, concurrency: n}
}

// SyncCourses refreshes the semester list and the course list of the
// active semester. The course lookup is rebuilt from the result.
func (r *Reconciler) SyncCourses(ctx context.Context) error {
	sess, err := r.sessions.Session()
	if err != nil {
		return err
	}
	epoch := r.st.Epoch()

	r.st.Dispatch(store.SemestersRequest{})
	ids, err := sess.SemesterIDs(ctx)
	if err != nil {
		r.st.Dispatch(store.SemestersFailure{Epoch: epoch, Err: err.Error()})
		return fmt.Errorf("semesters: %w", err)
	}
	current, err := sess.CurrentSemester(ctx)
	if err != nil {
		r.st.Dispatch(store.SemestersFailure{Epoch: epoch, Err: err.Error()})
		return fmt.Errorf("current semester: %w", err)
	}
	snap := r.st.Dispatch(store.SemestersSuccess{Epoch: epoch, IDs: ids, Current: current})

	semesterID := snap.Semesters.Active()
	r.st.Dispatch(store.CoursesRequest{})
	courses, err := sess.Courses(ctx, semesterID)
	if err != nil {
		r.st.Dispatch(store.CoursesFailure{Epoch: epoch, Err: err.Error()})
		return fmt.Errorf("courses: %w", err)
	}
	r.st.Dispatch(store.CoursesSuccess{Epoch: epoch, Courses: courses})
	r.log.Info("courses synced", zap.String("semester", semesterID), zap.Int("courses", len(courses)))
	return nil
}

// FetchForCourse replaces one course's items of the given kind.
func (r *Reconciler) FetchForCourse(ctx context.Context, kind model.Kind, courseID string) error {
	switch kind {
	case model.KindNotice:
		return fetchCourse(ctx, r, kind, courseID, func(s gateway.Session) fetcher[model.Notice] { return s.Notices })
	case model.KindAssignment:
		return fetchCourse(ctx, r, kind, courseID, func(s gateway.Session) fetcher[model.Assignment] { return s.Assignments })
	case model.KindFile:
		return fetchCourse(ctx, r, kind, courseID, func(s gateway.Session) fetcher[model.File] { return s.Files })
	}
	return fmt.Errorf("unknown content kind: %q", kind)
}

// FetchForCourses replaces the whole list of the given kind with the items
// of courseIDs.
func (r *Reconciler) FetchForCourses(ctx context.Context, kind model.Kind, courseIDs []string) error {
	switch kind {
	case model.KindNotice:
		return fetchAll(ctx, r, kind, courseIDs, func(s gateway.Session) fetcher[model.Notice] { return s.Notices })
	case model.KindAssignment:
		return fetchAll(ctx, r, kind, courseIDs, func(s gateway.Session) fetcher[model.Assignment] { return s.Assignments })
	case model.KindFile:
		return fetchAll(ctx, r, kind, courseIDs, func(s gateway.Session) fetcher[model.File] { return s.Files })
	}
	return fmt.Errorf("unknown content kind: %q", kind)
}

// FetchAll bulk-fetches every kind concurrently. Each kind succeeds or
// fails on its own; the first error is returned.
func (r *Reconciler) FetchAll(ctx context.Context, courseIDs []string) error {
	var g errgroup.Group
	for _, kind := range model.Kinds {
		g.Go(func() error {
			return r.FetchForCourses(ctx, kind, courseIDs)
		})
	}
	return g.Wait()
}

type fetcher[T any] func(context.Context, string) ([]T, error)

type stampable[T any] interface {
	model.Item
	WithCourse(model.CourseRef) T
}

// stamp copies the course name and teacher onto every item.
func stamp[T stampable[T]](items []T, index map[string]model.CourseRef) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, it := range items {
		ref, ok := index[it.ItemCourseID()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, it.ItemCourseID())
		}
		out = append(out, it.WithCourse(ref))
	}
	return out, nil
}

func fetchCourse[T stampable[T]](ctx context.Context, r *Reconciler, kind model.Kind, courseID string, pick func(gateway.Session) fetcher[T]) error {
	sess, err := r.sessions.Session()
	if err != nil {
		return err
	}
	snap := r.st.Snapshot()
	epoch := snap.Epoch
	r.st.Dispatch(store.ContentRequest{Kind: kind, Epoch: epoch})
	if _, ok := snap.Courses.Index[courseID]; !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCourse, courseID)
		r.st.Dispatch(store.ContentFailure{Kind: kind, Epoch: epoch, Err: err.Error()})
		return err
	}

	items, err := pick(sess)(ctx, courseID)
	if err == nil {
		items, err = stamp(items, snap.Courses.Index)
	}
	if err != nil {
		r.log.Warn("course fetch failed", zap.String("kind", string(kind)), zap.String("course", courseID), zap.Error(err))
		r.st.Dispatch(store.ContentFailure{Kind: kind, Epoch: epoch, Err: err.Error()})
		return err
	}
	now := r.now()
	order.Sort(items, now)
	r.st.Dispatch(store.ContentFetchedForCourse[T]{Epoch: epoch, CourseID: courseID, Items: items, Now: now})
	r.log.Debug("course fetched", zap.String("kind", string(kind)), zap.String("course", courseID), zap.Int("items", len(items)))
	return nil
}

func fetchAll[T stampable[T]](ctx context.Context, r *Reconciler, kind model.Kind, courseIDs []string, pick func(gateway.Session) fetcher[T]) error {
	sess, err := r.sessions.Session()
	if err != nil {
		return err
	}
	snap := r.st.Snapshot()
	epoch := snap.Epoch
	r.st.Dispatch(store.ContentRequest{Kind: kind, Epoch: epoch})
	for _, id := range courseIDs {
		if _, ok := snap.Courses.Index[id]; !ok {
			err := fmt.Errorf("%w: %s", ErrUnknownCourse, id)
			r.st.Dispatch(store.ContentFailure{Kind: kind, Epoch: epoch, Err: err.Error()})
			return err
		}
	}

	items, err := gateway.AllContents[T](ctx, courseIDs, r.concurrency, pick(sess))
	if err == nil {
		items, err = stamp(items, snap.Courses.Index)
	}
	if err != nil {
		r.log.Warn("bulk fetch failed", zap.String("kind", string(kind)), zap.Error(err))
		r.st.Dispatch(store.ContentFailure{Kind: kind, Epoch: epoch, Err: err.Error()})
		return err
	}
	now := r.now()
	order.Sort(items, now)
	r.st.Dispatch(store.ContentFetchedAll[T]{Epoch: epoch, Items: items, Now: now})
	r.log.Info("content fetched", zap.String("kind", string(kind)), zap.Int("courses", len(courseIDs)), zap.Int("items", len(items)))
	return nil
}
