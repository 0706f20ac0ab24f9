package store

import (
	"slices"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

// Reduce applies a to st and returns the next state. It never mutates st's
// slices, maps or sets in place. Unknown actions leave the state unchanged.
func Reduce(st State, a Action) State {
	switch t := a.(type) {
	case LoginRequest:
		if st.Auth.Username != "" && st.Auth.Username != t.Credential.Username {
			st.Epoch++
			// Fetches of the old epoch will never settle.
			st = st.withoutInFlight()
		}
		st.Auth = AuthState{
			LoggingIn: true,
			LoggedIn:  st.Auth.LoggedIn,
			Username:  t.Credential.Username,
			Password:  t.Credential.Password,
		}
	case LoginSuccess:
		st.Auth = AuthState{
			LoggedIn: true,
			Username: t.Credential.Username,
			Password: t.Credential.Password,
		}
	case LoginFailure:
		st.Auth.LoggingIn = false
		st.Auth.LoggedIn = false
		st.Auth.Error = t.Err
		st.Auth.Reason = t.Reason
	case ClearStore:
		next := Initial()
		next.Settings = st.Settings
		next.Epoch = st.Epoch + 1
		next.Revision = st.Revision
		st = next

	case UserInfoRequest:
		st.User.Fetching = true
		st.User.Error = ""
	case UserInfoSuccess:
		if t.Epoch != st.Epoch {
			return st
		}
		st.User = UserState{Info: t.Info}
	case UserInfoFailure:
		if t.Epoch != st.Epoch {
			return st
		}
		st.User.Fetching = false
		st.User.Error = t.Err

	case SemestersRequest:
		st.Semesters.Fetching = true
		st.Semesters.Error = ""
	case SemestersSuccess:
		if t.Epoch != st.Epoch {
			return st
		}
		selected := st.Semesters.Selected
		if selected != "" && !slices.Contains(t.IDs, selected) {
			selected = ""
		}
		st.Semesters = SemestersState{
			IDs:      slices.Clone(t.IDs),
			Current:  t.Current,
			Selected: selected,
		}
	case SemestersFailure:
		if t.Epoch != st.Epoch {
			return st
		}
		st.Semesters.Fetching = false
		st.Semesters.Error = t.Err
	case SetCurrentSemester:
		st.Semesters.Selected = t.ID

	case CoursesRequest:
		st.Courses.Fetching = true
		st.Courses.Error = ""
	case CoursesSuccess:
		if t.Epoch != st.Epoch {
			return st
		}
		st.Courses.Items = slices.Clone(t.Courses)
		st.Courses.Index = model.CourseIndex(t.Courses)
		st.Courses.Fetching = false
		st.Courses.Error = ""
	case CoursesFailure:
		if t.Epoch != st.Epoch {
			return st
		}
		st.Courses.Fetching = false
		st.Courses.Error = t.Err
	case SetCourseHidden:
		st.Courses.Hidden = st.Courses.Hidden.With(t.CourseID, t.Value)

	case ContentRequest:
		if t.Epoch == st.Epoch {
			st = st.withStarted(t.Kind)
		}
	case ContentFetchedForCourse[model.Notice]:
		if t.Epoch == st.Epoch {
			st.Notices = mergeCourse(st.Notices, t.CourseID, t.Items, t.Now)
		}
	case ContentFetchedForCourse[model.Assignment]:
		if t.Epoch == st.Epoch {
			st.Assignments = mergeCourse(st.Assignments, t.CourseID, t.Items, t.Now)
		}
	case ContentFetchedForCourse[model.File]:
		if t.Epoch == st.Epoch {
			st.Files = mergeCourse(st.Files, t.CourseID, t.Items, t.Now)
		}
	case ContentFetchedAll[model.Notice]:
		if t.Epoch == st.Epoch {
			st.Notices = mergeAll(st.Notices, t.Items, t.Now)
		}
	case ContentFetchedAll[model.Assignment]:
		if t.Epoch == st.Epoch {
			st.Assignments = mergeAll(st.Assignments, t.Items, t.Now)
		}
	case ContentFetchedAll[model.File]:
		if t.Epoch == st.Epoch {
			st.Files = mergeAll(st.Files, t.Items, t.Now)
		}
	case ContentFailure:
		if t.Epoch == st.Epoch {
			st = st.withSettled(t.Kind, t.Err)
		}

	case SetFlag:
		st = st.withSets(t.Kind, func(s annotate.Sets) annotate.Sets {
			return s.SetFlag(t.Flag, t.ID, t.Value)
		})
	case SetFlagBulk:
		st = st.withSets(t.Kind, func(s annotate.Sets) annotate.Sets {
			return s.SetFlagBulk(t.Flag, t.IDs, t.Value)
		})
	case MarkAllRead:
		st = st.withSets(t.Kind, func(s annotate.Sets) annotate.Sets {
			s.Unread = annotate.Set{}
			return s
		})

	case SetSetting:
		st.Settings = st.Settings.Apply(t.Update)

	case Rehydrate:
		next := t.State
		next.Epoch = st.Epoch
		next.Revision = st.Revision
		next.Courses.Index = model.CourseIndex(next.Courses.Items)
		if next.Settings == nil {
			next.Settings = DefaultSettings()
		}
		st = next
	}
	return st
}
