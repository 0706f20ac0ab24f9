// Package order holds the display ordering applied to reconciled content.
package order

import (
	"sort"
	"time"

	"learnsync/internal/model"
)

type timed interface {
	model.Item
	SortTime() time.Time
}

// ByTimeDesc sorts newest first; equal timestamps fall back to the id,
// compared lexicographically and descending.
func ByTimeDesc[T timed](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].SortTime(), items[j].SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].ItemID() > items[j].ItemID()
	})
}

// Assignments sorts by deadline descending, then moves the assignments that
// are not yet due to the front in reverse (soonest first). Past-due ones
// follow, most recently expired first.
func Assignments(items []model.Assignment, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Deadline.After(items[j].Deadline)
	})

	upcoming := make([]model.Assignment, 0, len(items))
	past := make([]model.Assignment, 0, len(items))
	for _, a := range items {
		if a.Deadline.After(now) {
			upcoming = append(upcoming, a)
		} else {
			past = append(past, a)
		}
	}
	n := 0
	for i := len(upcoming) - 1; i >= 0; i-- {
		items[n] = upcoming[i]
		n++
	}
	for _, a := range past {
		items[n] = a
		n++
	}
}

// Sort applies the ordering for T in place.
func Sort[T model.Item](items []T, now time.Time) {
	switch xs := any(items).(type) {
	case []model.Notice:
		ByTimeDesc(xs)
	case []model.File:
		ByTimeDesc(xs)
	case []model.Assignment:
		Assignments(xs, now)
	}
}
