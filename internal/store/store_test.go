package store

import (
	"sync"
	"testing"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
)

func TestStoreDispatchNotifiesAndBumpsRevision(t *testing.T) {
	t.Parallel()

	s := New(Initial(), nil)
	var seen []string
	unsubscribe := s.Subscribe(func(st State, a Action) {
		seen = append(seen, ActionName(a))
	})

	s.Dispatch(SetCourseHidden{CourseID: "c", Value: true})
	s.Dispatch(SetFlag{Kind: model.KindNotice, Flag: annotate.FlagPinned, ID: "n", Value: true})
	unsubscribe()
	s.Dispatch(ClearStore{})

	if len(seen) != 2 || seen[0] != "courses/hidden" || seen[1] != "notice/flag" {
		t.Fatalf("seen = %v", seen)
	}
	if got := s.Snapshot().Revision; got != 3 {
		t.Fatalf("revision = %d, want 3", got)
	}
}

func TestStoreSnapshotIsStable(t *testing.T) {
	t.Parallel()

	s := New(Initial(), nil)
	s.Dispatch(SetFlag{Kind: model.KindFile, Flag: annotate.FlagFavorite, ID: "a", Value: true})
	snap := s.Snapshot()
	s.Dispatch(SetFlag{Kind: model.KindFile, Flag: annotate.FlagFavorite, ID: "b", Value: true})

	if snap.Files.Favorites.Len() != 1 {
		t.Fatalf("snapshot changed after dispatch: %v", snap.Files.Favorites.IDs())
	}
}

func TestStoreConcurrentDispatchIsSerialised(t *testing.T) {
	t.Parallel()

	s := New(Initial(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Dispatch(SetFlag{Kind: model.KindNotice, Flag: annotate.FlagFavorite, ID: string(rune('a' + i%26)), Value: true})
		}(i)
	}
	wg.Wait()

	st := s.Snapshot()
	if st.Revision != 50 {
		t.Fatalf("revision = %d, want 50", st.Revision)
	}
	if st.Notices.Favorites.Len() != 26 {
		t.Fatalf("favorites = %d, want 26", st.Notices.Favorites.Len())
	}
}
