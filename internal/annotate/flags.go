package annotate

import (
	"fmt"
	"strings"
)

// Flag names one of the per-item overlay sets.
type Flag string

const (
	FlagUnread   Flag = "unread"
	FlagFavorite Flag = "favorite"
	FlagPinned   Flag = "pinned"
	FlagArchived Flag = "archived"
)

func ParseFlag(s string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unread":
		return FlagUnread, nil
	case "favorite", "favorites", "fav", "star":
		return FlagFavorite, nil
	case "pinned", "pin":
		return FlagPinned, nil
	case "archived", "archive":
		return FlagArchived, nil
	default:
		return "", fmt.Errorf("unknown flag: %q", s)
	}
}

// Sets is the overlay state for one content kind.
type Sets struct {
	Unread    Set `json:"unread"`
	Favorites Set `json:"favorites"`
	Archived  Set `json:"archived"`
	Pinned    Set `json:"pinned"`
}

func (s Sets) Get(f Flag) Set {
	switch f {
	case FlagUnread:
		return s.Unread
	case FlagFavorite:
		return s.Favorites
	case FlagPinned:
		return s.Pinned
	case FlagArchived:
		return s.Archived
	}
	return Set{}
}

// SetFlag returns a copy of s with id's membership in f set to value.
func (s Sets) SetFlag(f Flag, id string, value bool) Sets {
	switch f {
	case FlagUnread:
		s.Unread = s.Unread.With(id, value)
	case FlagFavorite:
		s.Favorites = s.Favorites.With(id, value)
	case FlagPinned:
		s.Pinned = s.Pinned.With(id, value)
	case FlagArchived:
		s.Archived = s.Archived.With(id, value)
	}
	return s
}

// SetFlagBulk applies SetFlag to every id.
func (s Sets) SetFlagBulk(f Flag, ids []string, value bool) Sets {
	switch f {
	case FlagUnread:
		s.Unread = s.Unread.WithAll(ids, value)
	case FlagFavorite:
		s.Favorites = s.Favorites.WithAll(ids, value)
	case FlagPinned:
		s.Pinned = s.Pinned.WithAll(ids, value)
	case FlagArchived:
		s.Archived = s.Archived.WithAll(ids, value)
	}
	return s
}
