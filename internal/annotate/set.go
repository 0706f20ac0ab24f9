// Package annotate holds the id sets layered over fetched content
// (unread, favorites, archived, pinned, hidden courses).
//
// A Set is immutable: every mutation returns a new Set and leaves the
// receiver untouched, so snapshots handed out by the store stay stable.
package annotate

import (
	"encoding/json"
	"sort"
)

type Set struct {
	m map[string]struct{}
}

func NewSet(ids ...string) Set {
	if len(ids) == 0 {
		return Set{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

func (s Set) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

func (s Set) Len() int { return len(s.m) }

// IDs returns the members in ascending order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s.m))
	for id := range s.m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// With sets membership of id to value. A no-op returns the receiver.
func (s Set) With(id string, value bool) Set {
	if s.Has(id) == value {
		return s
	}
	next := s.clone(1)
	if value {
		next.m[id] = struct{}{}
	} else {
		delete(next.m, id)
	}
	return next
}

// WithAll sets membership of every id to value.
func (s Set) WithAll(ids []string, value bool) Set {
	changed := false
	for _, id := range ids {
		if s.Has(id) != value {
			changed = true
			break
		}
	}
	if !changed {
		return s
	}
	next := s.clone(len(ids))
	for _, id := range ids {
		if value {
			next.m[id] = struct{}{}
		} else {
			delete(next.m, id)
		}
	}
	return next
}

// Without drops every member for which drop returns true.
func (s Set) Without(drop func(id string) bool) Set {
	var next Set
	for id := range s.m {
		if !drop(id) {
			continue
		}
		if next.m == nil {
			next = s.clone(0)
		}
		delete(next.m, id)
	}
	if next.m == nil {
		return s
	}
	return next
}

func (s Set) Equal(o Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for id := range s.m {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

func (s Set) clone(extra int) Set {
	m := make(map[string]struct{}, len(s.m)+extra)
	for id := range s.m {
		m[id] = struct{}{}
	}
	return Set{m: m}
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewSet(ids...)
	return nil
}
