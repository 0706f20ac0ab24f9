package store

import (
	"time"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
	"learnsync/internal/order"
)

// seener is implemented by content that carries a server-side read marker.
type seener interface {
	Seen() bool
}

// freshUnread decides whether a freshly fetched item belongs in the unread
// set. Items with a server marker follow it; items without one are unread
// when they were not present before or were already unread.
func freshUnread[T model.Item](it T, previous map[string]bool, wasUnread annotate.Set) bool {
	if s, ok := any(it).(seener); ok {
		return !s.Seen()
	}
	return !previous[it.ItemID()] || wasUnread.Has(it.ItemID())
}

func mergeCourse[T model.Item](cs ContentState[T], courseID string, fresh []T, now time.Time) ContentState[T] {
	previous := map[string]bool{}
	merged := make([]T, 0, len(cs.Items)+len(fresh))
	for _, it := range cs.Items {
		if it.ItemCourseID() == courseID {
			previous[it.ItemID()] = true
			continue
		}
		merged = append(merged, it)
	}
	merged = append(merged, fresh...)
	order.Sort(merged, now)

	unread := cs.Unread.Without(func(id string) bool { return previous[id] })
	add := make([]string, 0, len(fresh))
	for _, it := range fresh {
		if freshUnread(it, previous, cs.Unread) {
			add = append(add, it.ItemID())
		}
	}

	cs.Items = merged
	cs.Unread = unread.WithAll(add, true)
	return cs.settled("")
}

func mergeAll[T model.Item](cs ContentState[T], fresh []T, now time.Time) ContentState[T] {
	previous := make(map[string]bool, len(cs.Items))
	for _, it := range cs.Items {
		previous[it.ItemID()] = true
	}
	items := append([]T(nil), fresh...)
	order.Sort(items, now)

	unread := make([]string, 0, len(items))
	for _, it := range items {
		if freshUnread(it, previous, cs.Unread) {
			unread = append(unread, it.ItemID())
		}
	}

	cs.Items = items
	cs.Unread = annotate.NewSet(unread...)
	return cs.settled("")
}

func (s State) withSets(kind model.Kind, fn func(annotate.Sets) annotate.Sets) State {
	switch kind {
	case model.KindNotice:
		s.Notices.Sets = fn(s.Notices.Sets)
	case model.KindAssignment:
		s.Assignments.Sets = fn(s.Assignments.Sets)
	case model.KindFile:
		s.Files.Sets = fn(s.Files.Sets)
	}
	return s
}

func (s State) withoutInFlight() State {
	s.Notices = s.Notices.idle()
	s.Assignments = s.Assignments.idle()
	s.Files = s.Files.idle()
	return s
}

func (s State) withStarted(kind model.Kind) State {
	switch kind {
	case model.KindNotice:
		s.Notices = s.Notices.started()
	case model.KindAssignment:
		s.Assignments = s.Assignments.started()
	case model.KindFile:
		s.Files = s.Files.started()
	}
	return s
}

func (s State) withSettled(kind model.Kind, errMsg string) State {
	switch kind {
	case model.KindNotice:
		s.Notices = s.Notices.settled(errMsg)
	case model.KindAssignment:
		s.Assignments = s.Assignments.settled(errMsg)
	case model.KindFile:
		s.Files = s.Files.settled(errMsg)
	}
	return s
}
