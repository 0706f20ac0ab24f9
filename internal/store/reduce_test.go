package store

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func noticeIDs(items []model.Notice) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFetchForCourseLeavesOtherCoursesUntouched(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, ContentFetchedAll[model.Notice]{Items: []model.Notice{
		{ID: "a1", CourseID: "A", PublishTime: t0},
		{ID: "b1", CourseID: "B", PublishTime: t0.Add(-time.Hour), Title: "B one"},
		{ID: "b2", CourseID: "B", PublishTime: t0.Add(-2 * time.Hour), Title: "B two"},
	}, Now: t0})

	courseB := func(s State) []byte {
		var items []model.Notice
		for _, it := range s.Notices.Items {
			if it.CourseID == "B" {
				items = append(items, it)
			}
		}
		b, err := json.Marshal(items)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}
	before := courseB(st)

	st = Reduce(st, ContentFetchedForCourse[model.Notice]{CourseID: "A", Items: []model.Notice{
		{ID: "a2", CourseID: "A", PublishTime: t0.Add(time.Hour)},
	}, Now: t0})
	st = Reduce(st, ContentFetchedForCourse[model.Notice]{CourseID: "A", Items: []model.Notice{
		{ID: "a3", CourseID: "A", PublishTime: t0.Add(2 * time.Hour)},
		{ID: "a4", CourseID: "A", PublishTime: t0.Add(-3 * time.Hour)},
	}, Now: t0})

	if string(courseB(st)) != string(before) {
		t.Fatalf("course B changed:\nbefore %s\nafter  %s", before, courseB(st))
	}
	want := []string{"a3", "b1", "b2", "a4"}
	if got := noticeIDs(st.Notices.Items); !reflect.DeepEqual(got, want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
}

func TestBulkFileFetchDerivesUnreadFromIsNew(t *testing.T) {
	t.Parallel()

	st := Initial()
	st.Files.Unread = annotate.NewSet("G", "stale")
	st = Reduce(st, ContentFetchedAll[model.File]{Items: []model.File{
		{ID: "F", CourseID: "c", IsNew: true},
		{ID: "G", CourseID: "c", IsNew: false},
	}, Now: t0})

	if got := st.Files.Unread.IDs(); !reflect.DeepEqual(got, []string{"F"}) {
		t.Fatalf("unread = %v, want [F]", got)
	}
}

func TestCourseFetchPurgesUnreadOnlyForThatCourse(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, ContentFetchedAll[model.Notice]{Items: []model.Notice{
		{ID: "a1", CourseID: "A"},
		{ID: "a2", CourseID: "A"},
		{ID: "b1", CourseID: "B"},
	}, Now: t0})
	if got := st.Notices.Unread.IDs(); !reflect.DeepEqual(got, []string{"a1", "a2", "b1"}) {
		t.Fatalf("unread = %v", got)
	}

	// a2 disappeared from course A and a1 is now read on the server.
	st = Reduce(st, ContentFetchedForCourse[model.Notice]{CourseID: "A", Items: []model.Notice{
		{ID: "a1", CourseID: "A", HasRead: true},
		{ID: "a5", CourseID: "A"},
	}, Now: t0})
	if got := st.Notices.Unread.IDs(); !reflect.DeepEqual(got, []string{"a5", "b1"}) {
		t.Fatalf("unread = %v, want [a5 b1]", got)
	}
}

func TestAssignmentUnreadWithoutServerMarker(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, ContentFetchedAll[model.Assignment]{Items: []model.Assignment{
		{ID: "h1", CourseID: "A", Deadline: t0.Add(time.Hour)},
	}, Now: t0})
	st = Reduce(st, SetFlag{Kind: model.KindAssignment, Flag: annotate.FlagUnread, ID: "h1", Value: false})

	st = Reduce(st, ContentFetchedAll[model.Assignment]{Items: []model.Assignment{
		{ID: "h1", CourseID: "A", Deadline: t0.Add(time.Hour)},
		{ID: "h2", CourseID: "A", Deadline: t0.Add(2 * time.Hour)},
	}, Now: t0})
	if got := st.Assignments.Unread.IDs(); !reflect.DeepEqual(got, []string{"h2"}) {
		t.Fatalf("unread = %v, want [h2]", got)
	}
}

func TestStaleEpochResultsAreDropped(t *testing.T) {
	t.Parallel()

	st := Initial()
	epoch := st.Epoch
	st = Reduce(st, ClearStore{})

	st = Reduce(st, ContentFetchedAll[model.File]{Epoch: epoch, Items: []model.File{{ID: "late"}}, Now: t0})
	if len(st.Files.Items) != 0 {
		t.Fatalf("stale result applied: %#v", st.Files.Items)
	}
	st = Reduce(st, CoursesSuccess{Epoch: epoch, Courses: []model.Course{{ID: "c"}}})
	if len(st.Courses.Items) != 0 {
		t.Fatalf("stale courses applied: %#v", st.Courses.Items)
	}

	st = Reduce(st, ContentFetchedAll[model.File]{Epoch: st.Epoch, Items: []model.File{{ID: "fresh"}}, Now: t0})
	if len(st.Files.Items) != 1 {
		t.Fatalf("current result dropped")
	}
}

func TestLoginRequestWithOtherUserBumpsEpoch(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, LoginRequest{Credential: model.Credential{Username: "alice", Password: "p"}})
	if st.Epoch != 0 {
		t.Fatalf("first login bumped epoch: %d", st.Epoch)
	}
	st = Reduce(st, LoginSuccess{Credential: model.Credential{Username: "alice", Password: "p"}})
	st = Reduce(st, LoginRequest{Credential: model.Credential{Username: "alice", Password: "p"}})
	if st.Epoch != 0 {
		t.Fatalf("same-user login bumped epoch: %d", st.Epoch)
	}
	st = Reduce(st, LoginRequest{Credential: model.Credential{Username: "bob", Password: "q"}})
	if st.Epoch != 1 {
		t.Fatalf("credential swap epoch = %d, want 1", st.Epoch)
	}
}

func TestLoginLifecycle(t *testing.T) {
	t.Parallel()

	cred := model.Credential{Username: "alice", Password: "wrong"}
	st := Reduce(Initial(), LoginRequest{Credential: cred})
	if !st.Auth.LoggingIn {
		t.Fatalf("expected loggingIn")
	}
	st = Reduce(st, LoginFailure{Err: "bad credential", Reason: "bad-credential"})
	if st.Auth.LoggingIn || st.Auth.LoggedIn {
		t.Fatalf("unexpected auth flags: %#v", st.Auth)
	}
	if st.Auth.Credential() != cred {
		t.Fatalf("credential not retained for retry: %#v", st.Auth)
	}
	if st.Auth.Error == "" {
		t.Fatalf("expected error populated")
	}

	good := model.Credential{Username: "alice", Password: "right"}
	st = Reduce(st, LoginRequest{Credential: good})
	st = Reduce(st, LoginSuccess{Credential: good})
	if !st.Auth.LoggedIn || st.Auth.Error != "" || st.Auth.Credential() != good {
		t.Fatalf("unexpected auth after success: %#v", st.Auth)
	}
}

func TestClearStoreKeepsSettings(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, SetSetting{Update: ScalarUpdate(SettingLang, "en")})
	st = Reduce(st, LoginSuccess{Credential: model.Credential{Username: "u", Password: "p"}})
	st = Reduce(st, SetCourseHidden{CourseID: "c", Value: true})
	st = Reduce(st, ClearStore{})

	if st.Auth.LoggedIn || st.Auth.Username != "" {
		t.Fatalf("auth not cleared: %#v", st.Auth)
	}
	if st.Courses.Hidden.Len() != 0 {
		t.Fatalf("hidden not cleared")
	}
	if st.Settings.Text(SettingLang) != "en" {
		t.Fatalf("settings not kept: %#v", st.Settings)
	}
}

func TestSettingsScalarAndRecord(t *testing.T) {
	t.Parallel()

	st := Initial()
	st = Reduce(st, SetSetting{Update: RecordUpdate(SettingAlarms, map[string]any{"eventMinutes": float64(5)})})
	alarms, ok := st.Settings[SettingAlarms].(map[string]any)
	if !ok {
		t.Fatalf("alarms not a record: %#v", st.Settings[SettingAlarms])
	}
	want := map[string]any{"assignmentMinutes": float64(60 * 24), "eventMinutes": float64(5)}
	if !reflect.DeepEqual(alarms, want) {
		t.Fatalf("alarms = %#v, want %#v", alarms, want)
	}

	st = Reduce(st, SetSetting{Update: ScalarUpdate(SettingAlarms, "off")})
	if st.Settings[SettingAlarms] != "off" {
		t.Fatalf("scalar did not replace: %#v", st.Settings[SettingAlarms])
	}

	st = Reduce(st, SetSetting{Update: RecordUpdate(SettingAlarms, map[string]any{"x": true})})
	if !reflect.DeepEqual(st.Settings[SettingAlarms], map[string]any{"x": true}) {
		t.Fatalf("record over scalar = %#v", st.Settings[SettingAlarms])
	}
}

func TestSettingsApplyDoesNotMutateDefaults(t *testing.T) {
	t.Parallel()

	base := DefaultSettings()
	_ = base.Apply(RecordUpdate(SettingNoticeFilter, map[string]any{"showHidden": true}))
	if base[SettingNoticeFilter].(map[string]any)["showHidden"] != false {
		t.Fatalf("Apply mutated receiver")
	}
}

func TestSemestersKeepValidSelection(t *testing.T) {
	t.Parallel()

	st := Reduce(Initial(), SetCurrentSemester{ID: "2025-2026-1"})
	st = Reduce(st, SemestersSuccess{IDs: []string{"2025-2026-1", "2025-2026-2"}, Current: model.Semester{ID: "2025-2026-2"}})
	if st.Semesters.Active() != "2025-2026-1" {
		t.Fatalf("active = %q", st.Semesters.Active())
	}
	st = Reduce(st, SetCurrentSemester{ID: "1999-2000-1"})
	st = Reduce(st, SemestersSuccess{IDs: []string{"2025-2026-2"}, Current: model.Semester{ID: "2025-2026-2"}})
	if st.Semesters.Active() != "2025-2026-2" {
		t.Fatalf("active = %q", st.Semesters.Active())
	}
}

func TestCoursesSuccessRebuildsIndex(t *testing.T) {
	t.Parallel()

	st := Reduce(Initial(), CoursesSuccess{Courses: []model.Course{{ID: "c1", Name: "Calculus", TeacherName: "Li"}}})
	if st.Courses.Index["c1"].Name != "Calculus" {
		t.Fatalf("index = %#v", st.Courses.Index)
	}
	st = Reduce(st, CoursesSuccess{Courses: []model.Course{{ID: "c2", Name: "Physics"}}})
	if _, ok := st.Courses.Index["c1"]; ok {
		t.Fatalf("stale index entry kept")
	}
}

func TestMarkAllReadAndBulkArchive(t *testing.T) {
	t.Parallel()

	st := Initial()
	st.Notices.Unread = annotate.NewSet("a", "b")
	st = Reduce(st, MarkAllRead{Kind: model.KindNotice})
	if st.Notices.Unread.Len() != 0 {
		t.Fatalf("unread = %v", st.Notices.Unread.IDs())
	}
	st = Reduce(st, SetFlagBulk{Kind: model.KindFile, Flag: annotate.FlagArchived, IDs: []string{"x", "y"}, Value: true})
	if got := st.Files.Archived.IDs(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("archived = %v", got)
	}
}

func TestContentFailureKeepsPriorList(t *testing.T) {
	t.Parallel()

	st := Reduce(Initial(), ContentFetchedAll[model.Notice]{Items: []model.Notice{{ID: "n1"}}, Now: t0})
	st = Reduce(st, ContentRequest{Kind: model.KindNotice})
	if !st.Notices.Fetching {
		t.Fatalf("expected fetching")
	}
	st = Reduce(st, ContentFailure{Kind: model.KindNotice, Err: "network"})
	if st.Notices.Fetching || st.Notices.Error != "network" {
		t.Fatalf("unexpected status: fetching=%v err=%q", st.Notices.Fetching, st.Notices.Error)
	}
	if got := noticeIDs(st.Notices.Items); !reflect.DeepEqual(got, []string{"n1"}) {
		t.Fatalf("items = %v", got)
	}
}

func TestFetchingHoldsUntilEveryFetchSettles(t *testing.T) {
	t.Parallel()

	st := Reduce(Initial(), ContentRequest{Kind: model.KindNotice})
	st = Reduce(st, ContentRequest{Kind: model.KindNotice})
	st = Reduce(st, ContentFetchedForCourse[model.Notice]{CourseID: "A", Items: []model.Notice{{ID: "n1", CourseID: "A"}}, Now: t0})
	if !st.Notices.Fetching {
		t.Fatalf("fetching cleared while course B is still in flight")
	}
	st = Reduce(st, ContentFailure{Kind: model.KindNotice, Err: "network"})
	if st.Notices.Fetching || st.Notices.Error != "network" {
		t.Fatalf("status = fetching %v, error %q", st.Notices.Fetching, st.Notices.Error)
	}

	// An extra settle does not underflow.
	st = Reduce(st, ContentFailure{Kind: model.KindNotice, Err: "again"})
	st = Reduce(st, ContentRequest{Kind: model.KindNotice})
	if !st.Notices.Fetching {
		t.Fatalf("expected fetching after a new request")
	}

	// Requests of an old epoch never settle, so they are not counted.
	old := st.Epoch
	st = Reduce(st, ClearStore{})
	st = Reduce(st, ContentRequest{Kind: model.KindFile, Epoch: old})
	if st.Files.Fetching {
		t.Fatalf("stale request marked files fetching")
	}

	st = Reduce(st, LoginRequest{Credential: model.Credential{Username: "alice", Password: "pw"}})
	st = Reduce(st, ContentRequest{Kind: model.KindFile, Epoch: st.Epoch})
	st = Reduce(st, LoginRequest{Credential: model.Credential{Username: "bob", Password: "pw"}})
	if st.Files.Fetching {
		t.Fatalf("switching users left files fetching")
	}
}

func TestRehydrateRebuildsIndexAndKeepsEpoch(t *testing.T) {
	t.Parallel()

	st := Reduce(Initial(), ClearStore{})
	loaded := Initial()
	loaded.Courses.Items = []model.Course{{ID: "c1", Name: "Calculus"}}
	loaded.Courses.Index = nil
	loaded.Epoch = 99

	st = Reduce(st, Rehydrate{State: loaded})
	if st.Epoch != 1 {
		t.Fatalf("epoch = %d, want 1", st.Epoch)
	}
	if st.Courses.Index["c1"].Name != "Calculus" {
		t.Fatalf("index not rebuilt: %#v", st.Courses.Index)
	}
}
