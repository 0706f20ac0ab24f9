package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
	"learnsync/internal/store"
)

// memSecure is an in-memory SecureStore.
type memSecure map[string][]byte

func (m memSecure) Get(key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m memSecure) Set(key string, value []byte) error {
	m[key] = value
	return nil
}

func (m memSecure) Delete(key string) error {
	delete(m, key)
	return nil
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(context.Background(), filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func populated() store.State {
	st := store.Initial()
	st = store.Reduce(st, store.LoginSuccess{Credential: model.Credential{Username: "alice", Password: "pw"}})
	st = store.Reduce(st, store.CoursesSuccess{Courses: []model.Course{{ID: "A", Name: "Calculus", TeacherName: "Li"}}})
	st = store.Reduce(st, store.ContentFetchedAll[model.Notice]{Items: []model.Notice{{ID: "n1", CourseID: "A"}}})
	st = store.Reduce(st, store.SetFlag{Kind: model.KindNotice, Flag: annotate.FlagFavorite, ID: "n1", Value: true})
	st = store.Reduce(st, store.SetSetting{Update: store.ScalarUpdate(store.SettingLang, "en")})
	st = store.Reduce(st, store.SetSetting{Update: store.ScalarUpdate(store.SettingHasUpdate, true)})
	st.Notices.Fetching = true
	st.Notices.Error = "boom"
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	secure := memSecure{}
	p := New(openTestDB(t), secure, Options{})
	if err := p.Save(ctx, populated()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Auth.Username != "alice" || got.Auth.Password != "pw" || got.Auth.LoggedIn {
		t.Fatalf("auth = %#v", got.Auth)
	}
	if got.Settings.Text(store.SettingLang) != "en" {
		t.Fatalf("lang = %v", got.Settings[store.SettingLang])
	}
	if got.Settings.Bool(store.SettingHasUpdate) {
		t.Fatalf("hasUpdate was persisted")
	}
	if len(got.Notices.Items) != 1 || !got.Notices.Favorites.Has("n1") {
		t.Fatalf("notices = %#v", got.Notices)
	}
	if got.Notices.Fetching || got.Notices.Error != "" {
		t.Fatalf("transient fields restored: %#v", got.Notices)
	}
	if got.Courses.Index["A"].Name != "Calculus" {
		t.Fatalf("course index not rebuilt: %#v", got.Courses.Index)
	}
	if _, ok := secure[KeyAuth]; !ok {
		t.Fatalf("credential not in secure store")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	now := time.Now()
	if err := db.Put(ctx, KeySettings, 1, []byte(`{"lang":"en","futureKey":1}`), now); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(ctx, KeyRoot, 1, []byte(`{"courses":{"items":[{"id":"A","name":"Calculus"}],"hidden":["A"]}}`), now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := New(db, memSecure{}, Options{}).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := store.DefaultSettings()
	if got.Settings.Bool(store.SettingNewAssignmentNotification) != def.Bool(store.SettingNewAssignmentNotification) {
		t.Fatalf("default lost for missing key")
	}
	if got.Settings.Text(store.SettingLang) != "en" || got.Settings["futureKey"] == nil {
		t.Fatalf("settings = %#v", got.Settings)
	}
	if !got.Courses.Hidden.Has("A") || len(got.Notices.Items) != 0 {
		t.Fatalf("root = %#v", got.Courses)
	}
}

func TestSaveSkipsUnchangedBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	at := time.UnixMilli(1000)
	p := New(db, memSecure{}, Options{Now: func() time.Time { return at }})
	st := populated()
	if err := p.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	at = time.UnixMilli(2000)
	st = store.Reduce(st, store.SetSetting{Update: store.ScalarUpdate(store.SettingGraduate, true)})
	if err := p.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	keys, err := db.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if keys[KeyRoot].UnixMilli() != 1000 || keys[KeySettings].UnixMilli() != 2000 {
		t.Fatalf("write times = %v", keys)
	}
}

func TestAttachDebouncesAndFlushes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	p := New(db, memSecure{}, Options{Debounce: time.Hour})
	st := store.New(store.Initial(), nil)
	detach := p.Attach(st)
	defer detach()

	st.Dispatch(store.SetSetting{Update: store.ScalarUpdate(store.SettingLang, "en")})
	st.Dispatch(store.SetSetting{Update: store.ScalarUpdate(store.SettingGraduate, true)})
	if _, _, ok, _ := db.Get(ctx, KeySettings); ok {
		t.Fatalf("saved before debounce elapsed")
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Settings.Text(store.SettingLang) != "en" || !got.Settings.Bool(store.SettingGraduate) {
		t.Fatalf("settings = %#v", got.Settings)
	}
}

func TestPurgeRePrimesAndResumes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	secure := memSecure{}
	p := New(openTestDB(t), secure, Options{Debounce: time.Hour})
	st := store.New(populated(), nil)
	detach := p.Attach(st)
	defer detach()
	if err := p.Save(ctx, st.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st.Dispatch(store.ClearStore{})
	if err := p.Purge(ctx, st.Snapshot()); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok := secure[KeyAuth]; ok {
		t.Fatalf("credential survived purge")
	}
	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Notices.Items) != 0 || got.Auth.Username != "" {
		t.Fatalf("content survived purge: %#v", got.Notices)
	}
	if got.Settings.Text(store.SettingLang) != "en" {
		t.Fatalf("settings not re-primed: %#v", got.Settings)
	}

	st.Dispatch(store.SetSetting{Update: store.ScalarUpdate(store.SettingLang, "zh")})
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, _ = p.Load(ctx)
	if got.Settings.Text(store.SettingLang) != "zh" {
		t.Fatalf("writer not resumed after purge")
	}
}

func TestSealedFileStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets.sealed")
	s, err := NewSealedFileStore(path, "correct horse")
	if err != nil {
		t.Fatalf("NewSealedFileStore: %v", err)
	}
	if _, err := s.Get(KeyAuth); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(KeyAuth, []byte(`{"username":"alice"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(KeyAuth)
	if err != nil || string(got) != `{"username":"alice"}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
	raw, _ := os.ReadFile(path)
	if len(raw) == 0 || reflect.DeepEqual(raw, got) {
		t.Fatalf("file not sealed")
	}

	wrong, _ := NewSealedFileStore(path, "battery staple")
	if _, err := wrong.Get(KeyAuth); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}

	if err := s.Delete(KeyAuth); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(KeyAuth); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(KeyAuth); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := NewSealedFileStore(path, ""); err == nil {
		t.Fatalf("empty passphrase accepted")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	k := KeyringStore{Service: "learnsync-test"}
	if _, err := k.Get(KeyAuth); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := k.Set(KeyAuth, []byte("secret")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := k.Get(KeyAuth); err != nil || string(got) != "secret" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := k.Delete(KeyAuth); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := k.Delete(KeyAuth); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}
