package views

import (
	"reflect"
	"testing"
	"time"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

func ids[T model.Item](items []T) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.ItemID())
	}
	return out
}

func TestDeriveArchivedAndHiddenItemIsExcludedFromDefaultViews(t *testing.T) {
	t.Parallel()

	items := []model.Notice{
		{ID: "x", CourseID: "hidden-course"},
		{ID: "y", CourseID: "c"},
	}
	sets := annotate.Sets{
		Unread:    annotate.NewSet("x", "y"),
		Favorites: annotate.NewSet("x"),
		Archived:  annotate.NewSet("x"),
	}
	v := Derive(items, sets, annotate.NewSet("hidden-course"))

	if got := ids(v.All); !reflect.DeepEqual(got, []string{"y"}) {
		t.Fatalf("all = %v", got)
	}
	if got := ids(v.Unread); !reflect.DeepEqual(got, []string{"y"}) {
		t.Fatalf("unread = %v", got)
	}
	if got := ids(v.Favorites); len(got) != 0 {
		t.Fatalf("favorites = %v", got)
	}
	if got := ids(v.Archived); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("archived = %v", got)
	}
	if got := ids(v.Hidden); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("hidden = %v", got)
	}
}

func TestDerivePinnedFirstInReconciledOrder(t *testing.T) {
	t.Parallel()

	items := []model.File{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	// Insertion order into the pinned set does not matter.
	pinned := annotate.NewSet().With("4", true).With("2", true)
	v := Derive(items, annotate.Sets{Pinned: pinned}, annotate.Set{})

	if got := ids(v.All); !reflect.DeepEqual(got, []string{"2", "4", "1", "3"}) {
		t.Fatalf("all = %v", got)
	}
}

func TestDeriveUnfinishedCountsArchivedAssignments(t *testing.T) {
	t.Parallel()

	items := []model.Assignment{
		{ID: "open", CourseID: "c"},
		{ID: "done", CourseID: "c", Submitted: true},
		{ID: "hidden-open", CourseID: "h"},
	}
	sets := annotate.Sets{Archived: annotate.NewSet("open")}
	v := Derive(items, sets, annotate.NewSet("h"))

	if got := ids(v.Unfinished); !reflect.DeepEqual(got, []string{"open", "hidden-open"}) {
		t.Fatalf("unfinished = %v", got)
	}
	if got := ids(v.Finished); !reflect.DeepEqual(got, []string{"done"}) {
		t.Fatalf("finished = %v", got)
	}
	if got := ids(v.All); !reflect.DeepEqual(got, []string{"done"}) {
		t.Fatalf("all = %v", got)
	}
}

func TestDeriveNonAssignmentsHaveNoFinishedViews(t *testing.T) {
	t.Parallel()

	v := Derive([]model.Notice{{ID: "n"}}, annotate.Sets{}, annotate.Set{})
	if len(v.Unfinished) != 0 || len(v.Finished) != 0 {
		t.Fatalf("unexpected unfinished/finished: %v %v", ids(v.Unfinished), ids(v.Finished))
	}
	if got := v.Get(Name("bogus")); !reflect.DeepEqual(ids(got), []string{"n"}) {
		t.Fatalf("unknown view should fall back to all, got %v", ids(got))
	}
}

func TestSearchRanksTitleAboveContent(t *testing.T) {
	t.Parallel()

	items := []model.Notice{
		{ID: "body", Title: "Weekly update", Content: "the midterm exam room changed"},
		{ID: "title", Title: "Midterm exam", Content: "see attachment"},
		{ID: "none", Title: "Lab safety", Content: "wear goggles"},
	}
	got := NewIndex(items, NoticeFields).Search("midterm")
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2: %#v", len(got), got)
	}
	if got[0].Item.ID != "title" || got[1].Item.ID != "body" {
		t.Fatalf("order = %s, %s", got[0].Item.ID, got[1].Item.ID)
	}
	if !reflect.DeepEqual(got[0].Fields, []string{"title"}) {
		t.Fatalf("fields = %v", got[0].Fields)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	got := NewIndex([]model.File{{ID: "f", Title: "slides"}}, FileFields).Search("  ")
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestCachedBuildsOncePerKey(t *testing.T) {
	t.Parallel()

	c := NewCache(time.Minute)
	builds := 0
	build := func() *Index[model.File] {
		builds++
		return NewIndex([]model.File{{ID: "f", Title: "slides"}}, FileFields)
	}
	a := Cached(c, "file:1", build)
	b := Cached(c, "file:1", build)
	if a != b || builds != 1 {
		t.Fatalf("builds = %d, same = %v", builds, a == b)
	}
	Cached(c, "file:2", build)
	if builds != 2 {
		t.Fatalf("builds = %d, want 2", builds)
	}
}
