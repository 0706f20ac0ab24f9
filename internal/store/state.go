package store

import (
	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

type AuthState struct {
	LoggingIn bool   `json:"loggingIn"`
	LoggedIn  bool   `json:"loggedIn"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	Error     string `json:"error,omitempty"`
	// Reason is the gateway failure classification of Error, e.g. "sso-challenge".
	Reason string `json:"reason,omitempty"`
}

func (a AuthState) Credential() model.Credential {
	return model.Credential{Username: a.Username, Password: a.Password}
}

type UserState struct {
	Info     model.UserInfo `json:"info"`
	Fetching bool           `json:"fetching,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type SemestersState struct {
	IDs      []string       `json:"ids"`
	Current  model.Semester `json:"current"`
	Selected string         `json:"selected,omitempty"`
	Fetching bool           `json:"fetching,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Active is the semester whose courses are synced.
func (s SemestersState) Active() string {
	if s.Selected != "" {
		return s.Selected
	}
	return s.Current.ID
}

type CoursesState struct {
	Items    []model.Course `json:"items"`
	Hidden   annotate.Set   `json:"hidden"`
	Fetching bool           `json:"fetching,omitempty"`
	Error    string         `json:"error,omitempty"`

	// Index is derived from Items and rebuilt whenever they change.
	Index map[string]model.CourseRef `json:"-"`
}

func (c CoursesState) IDs() []string {
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.ID)
	}
	return out
}

type ContentState[T model.Item] struct {
	Items []T `json:"items"`
	annotate.Sets
	// Fetching holds while any fetch of the kind is in flight.
	Fetching bool   `json:"fetching,omitempty"`
	Error    string `json:"error,omitempty"`

	inFlight int
}

func (cs ContentState[T]) started() ContentState[T] {
	cs.inFlight++
	cs.Fetching = true
	cs.Error = ""
	return cs
}

func (cs ContentState[T]) idle() ContentState[T] {
	cs.inFlight = 0
	cs.Fetching = false
	return cs
}

func (cs ContentState[T]) settled(errMsg string) ContentState[T] {
	if cs.inFlight > 0 {
		cs.inFlight--
	}
	cs.Fetching = cs.inFlight > 0
	cs.Error = errMsg
	return cs
}

type State struct {
	Auth        AuthState                      `json:"auth"`
	User        UserState                      `json:"user"`
	Semesters   SemestersState                 `json:"semesters"`
	Courses     CoursesState                   `json:"courses"`
	Notices     ContentState[model.Notice]     `json:"notices"`
	Assignments ContentState[model.Assignment] `json:"assignments"`
	Files       ContentState[model.File]       `json:"files"`
	Settings    Settings                       `json:"settings"`

	// Epoch changes on logout and on a credential swap. Results captured
	// under an older epoch are dropped.
	Epoch uint64 `json:"epoch"`
	// Revision increments on every dispatched action.
	Revision uint64 `json:"revision"`
}

func Initial() State {
	return State{
		Courses:  CoursesState{Index: map[string]model.CourseRef{}},
		Settings: DefaultSettings(),
	}
}

// Sets returns the overlay sets for kind.
func (s State) Sets(kind model.Kind) annotate.Sets {
	switch kind {
	case model.KindNotice:
		return s.Notices.Sets
	case model.KindAssignment:
		return s.Assignments.Sets
	case model.KindFile:
		return s.Files.Sets
	}
	return annotate.Sets{}
}

// ContentError returns the recorded fetch error for kind.
func (s State) ContentError(kind model.Kind) string {
	switch kind {
	case model.KindNotice:
		return s.Notices.Error
	case model.KindAssignment:
		return s.Assignments.Error
	case model.KindFile:
		return s.Files.Error
	}
	return ""
}
