// Package views computes the filtered lists the UI shows over reconciled
// content and its overlay sets.
package views

import (
	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

type Views[T model.Item] struct {
	All        []T `json:"all"`
	Unread     []T `json:"unread"`
	Favorites  []T `json:"favorites"`
	Archived   []T `json:"archived"`
	Hidden     []T `json:"hidden"`
	Unfinished []T `json:"unfinished"`
	Finished   []T `json:"finished"`
}

// Name selects one list out of Views.
type Name string

const (
	All        Name = "all"
	Unread     Name = "unread"
	Favorites  Name = "favorites"
	Archived   Name = "archived"
	Hidden     Name = "hidden"
	Unfinished Name = "unfinished"
	Finished   Name = "finished"
)

var Names = []Name{All, Unread, Favorites, Archived, Hidden, Unfinished, Finished}

func (v Views[T]) Get(n Name) []T {
	switch n {
	case Unread:
		return v.Unread
	case Favorites:
		return v.Favorites
	case Archived:
		return v.Archived
	case Hidden:
		return v.Hidden
	case Unfinished:
		return v.Unfinished
	case Finished:
		return v.Finished
	}
	return v.All
}

type submittable interface {
	IsSubmitted() bool
}

// Derive computes every view of items. items must already be in reconciled
// order; that order is kept inside each view.
//
// All excludes archived items and items of hidden courses and lists pinned
// items first. Unread and Favorites filter All. Hidden, Archived and the
// assignment-only Unfinished/Finished views are taken from the unfiltered
// list, so an archived assignment still counts toward Unfinished.
func Derive[T model.Item](items []T, sets annotate.Sets, hiddenCourses annotate.Set) Views[T] {
	v := Views[T]{
		All:        []T{},
		Unread:     []T{},
		Favorites:  []T{},
		Archived:   []T{},
		Hidden:     []T{},
		Unfinished: []T{},
		Finished:   []T{},
	}

	var pinned, rest []T
	for _, it := range items {
		id := it.ItemID()
		hidden := hiddenCourses.Has(it.ItemCourseID())
		archived := sets.Archived.Has(id)
		if hidden {
			v.Hidden = append(v.Hidden, it)
		}
		if archived {
			v.Archived = append(v.Archived, it)
		}
		if s, ok := any(it).(submittable); ok {
			if s.IsSubmitted() {
				v.Finished = append(v.Finished, it)
			} else {
				v.Unfinished = append(v.Unfinished, it)
			}
		}
		if hidden || archived {
			continue
		}
		if sets.Pinned.Has(id) {
			pinned = append(pinned, it)
		} else {
			rest = append(rest, it)
		}
	}

	v.All = append(append(v.All, pinned...), rest...)
	for _, it := range v.All {
		if sets.Unread.Has(it.ItemID()) {
			v.Unread = append(v.Unread, it)
		}
		if sets.Favorites.Has(it.ItemID()) {
			v.Favorites = append(v.Favorites, it)
		}
	}
	return v
}
