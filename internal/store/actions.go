package store

import (
	"time"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

// Action is a state transition request. The set of actions is closed.
type Action interface {
	action()
}

type LoginRequest struct{ Credential model.Credential }
type LoginSuccess struct{ Credential model.Credential }
type LoginFailure struct {
	Err    string
	Reason string
}

// ClearStore resets everything except settings.
type ClearStore struct{}

type UserInfoRequest struct{}
type UserInfoSuccess struct {
	Epoch uint64
	Info  model.UserInfo
}
type UserInfoFailure struct {
	Epoch uint64
	Err   string
}

type SemestersRequest struct{}
type SemestersSuccess struct {
	Epoch   uint64
	IDs     []string
	Current model.Semester
}
type SemestersFailure struct {
	Epoch uint64
	Err   string
}
type SetCurrentSemester struct{ ID string }

type CoursesRequest struct{}
type CoursesSuccess struct {
	Epoch   uint64
	Courses []model.Course
}
type CoursesFailure struct {
	Epoch uint64
	Err   string
}

// ContentRequest marks one fetch of kind as started. Each is settled by a
// fetched or failure action of the same epoch.
type ContentRequest struct {
	Kind  model.Kind
	Epoch uint64
}

// ContentFetchedForCourse replaces the items of one course.
type ContentFetchedForCourse[T model.Item] struct {
	Epoch    uint64
	CourseID string
	Items    []T
	Now      time.Time
}

// ContentFetchedAll replaces the whole list.
type ContentFetchedAll[T model.Item] struct {
	Epoch uint64
	Items []T
	Now   time.Time
}

type ContentFailure struct {
	Kind  model.Kind
	Epoch uint64
	Err   string
}

type SetFlag struct {
	Kind  model.Kind
	Flag  annotate.Flag
	ID    string
	Value bool
}

type SetFlagBulk struct {
	Kind  model.Kind
	Flag  annotate.Flag
	IDs   []string
	Value bool
}

type MarkAllRead struct{ Kind model.Kind }

type SetCourseHidden struct {
	CourseID string
	Value    bool
}

type SetSetting struct{ Update SettingUpdate }

// Rehydrate replaces the state with one loaded from storage.
type Rehydrate struct{ State State }

func (LoginRequest) action()               {}
func (LoginSuccess) action()               {}
func (LoginFailure) action()               {}
func (ClearStore) action()                 {}
func (UserInfoRequest) action()            {}
func (UserInfoSuccess) action()            {}
func (UserInfoFailure) action()            {}
func (SemestersRequest) action()           {}
func (SemestersSuccess) action()           {}
func (SemestersFailure) action()           {}
func (SetCurrentSemester) action()         {}
func (CoursesRequest) action()             {}
func (CoursesSuccess) action()             {}
func (CoursesFailure) action()             {}
func (ContentRequest) action()             {}
func (ContentFetchedForCourse[T]) action() {}
func (ContentFetchedAll[T]) action()       {}
func (ContentFailure) action()             {}
func (SetFlag) action()                    {}
func (SetFlagBulk) action()                {}
func (MarkAllRead) action()                {}
func (SetCourseHidden) action()            {}
func (SetSetting) action()                 {}
func (Rehydrate) action()                  {}

// ActionName is a short label for logging.
func ActionName(a Action) string {
	switch t := a.(type) {
	case LoginRequest:
		return "login/request"
	case LoginSuccess:
		return "login/success"
	case LoginFailure:
		return "login/failure"
	case ClearStore:
		return "clear"
	case UserInfoRequest:
		return "user/request"
	case UserInfoSuccess:
		return "user/success"
	case UserInfoFailure:
		return "user/failure"
	case SemestersRequest:
		return "semesters/request"
	case SemestersSuccess:
		return "semesters/success"
	case SemestersFailure:
		return "semesters/failure"
	case SetCurrentSemester:
		return "semesters/select"
	case CoursesRequest:
		return "courses/request"
	case CoursesSuccess:
		return "courses/success"
	case CoursesFailure:
		return "courses/failure"
	case ContentRequest:
		return string(t.Kind) + "/request"
	case ContentFetchedForCourse[model.Notice]:
		return "notice/course"
	case ContentFetchedForCourse[model.Assignment]:
		return "assignment/course"
	case ContentFetchedForCourse[model.File]:
		return "file/course"
	case ContentFetchedAll[model.Notice]:
		return "notice/all"
	case ContentFetchedAll[model.Assignment]:
		return "assignment/all"
	case ContentFetchedAll[model.File]:
		return "file/all"
	case ContentFailure:
		return string(t.Kind) + "/failure"
	case SetFlag:
		return string(t.Kind) + "/flag"
	case SetFlagBulk:
		return string(t.Kind) + "/flag-bulk"
	case MarkAllRead:
		return string(t.Kind) + "/read-all"
	case SetCourseHidden:
		return "courses/hidden"
	case SetSetting:
		return "settings/set"
	case Rehydrate:
		return "rehydrate"
	}
	return "unknown"
}
