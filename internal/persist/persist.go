// Package persist saves the store across runs. Credentials go to a secure
// store; settings and synced content go to a SQLite blob table.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnsync/internal/annotate"
	"learnsync/internal/model"
	"learnsync/internal/store"
)

const (
	KeyAuth     = "auth"
	KeySettings = "settings"
	KeyRoot     = "root"

	blobVersion = 1
)

type authBlob struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type semestersBlob struct {
	IDs      []string       `json:"ids"`
	Current  model.Semester `json:"current"`
	Selected string         `json:"selected"`
}

type coursesBlob struct {
	Items  []model.Course `json:"items"`
	Hidden annotate.Set   `json:"hidden"`
}

type contentBlob[T model.Item] struct {
	Items []T `json:"items"`
	annotate.Sets
}

// rootBlob is everything except auth and settings. Fetch status fields are
// not saved.
type rootBlob struct {
	User        model.UserInfo                `json:"user"`
	Semesters   semestersBlob                 `json:"semesters"`
	Courses     coursesBlob                   `json:"courses"`
	Notices     contentBlob[model.Notice]     `json:"notices"`
	Assignments contentBlob[model.Assignment] `json:"assignments"`
	Files       contentBlob[model.File]       `json:"files"`
}

func rootOf(st store.State) rootBlob {
	return rootBlob{
		User: st.User.Info,
		Semesters: semestersBlob{
			IDs:      st.Semesters.IDs,
			Current:  st.Semesters.Current,
			Selected: st.Semesters.Selected,
		},
		Courses:     coursesBlob{Items: st.Courses.Items, Hidden: st.Courses.Hidden},
		Notices:     contentBlob[model.Notice]{Items: st.Notices.Items, Sets: st.Notices.Sets},
		Assignments: contentBlob[model.Assignment]{Items: st.Assignments.Items, Sets: st.Assignments.Sets},
		Files:       contentBlob[model.File]{Items: st.Files.Items, Sets: st.Files.Sets},
	}
}

func (r rootBlob) apply(st store.State) store.State {
	st.User = store.UserState{Info: r.User}
	st.Semesters = store.SemestersState{IDs: r.Semesters.IDs, Current: r.Semesters.Current, Selected: r.Semesters.Selected}
	st.Courses = store.CoursesState{Items: r.Courses.Items, Hidden: r.Courses.Hidden}
	st.Notices = store.ContentState[model.Notice]{Items: r.Notices.Items, Sets: r.Notices.Sets}
	st.Assignments = store.ContentState[model.Assignment]{Items: r.Assignments.Items, Sets: r.Assignments.Sets}
	st.Files = store.ContentState[model.File]{Items: r.Files.Items, Sets: r.Files.Sets}
	return st
}

type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

type Persister struct {
	db     *DB
	secure SecureStore
	log    *zap.Logger
	now    func() time.Time
	w      *writer

	// saveMu serialises saves and purges.
	saveMu  sync.Mutex
	written map[string][]byte

	mu    sync.Mutex
	st    *store.Store
	unsub func()
}

func New(db *DB, secure SecureStore, opts Options) *Persister {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := &Persister{
		db:      db,
		secure:  secure,
		log:     log.Named("persist"),
		now:     now,
		written: map[string][]byte{},
	}
	p.w = newWriter(opts.Debounce, p.log, p.saveAttached)
	return p
}

// Load builds a state from the defaults with every saved blob merged over
// it. Top-level keys of a blob replace the defaults; keys the blob lacks
// keep their default. Login status is never restored.
func (p *Persister) Load(ctx context.Context) (store.State, error) {
	st := store.Initial()

	if b, err := p.secure.Get(KeyAuth); err == nil {
		var a authBlob
		if err := json.Unmarshal(b, &a); err != nil {
			p.log.Warn("ignoring unreadable auth blob", zap.Error(err))
		} else {
			st.Auth = store.AuthState{Username: a.Username, Password: a.Password}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return store.State{}, fmt.Errorf("load auth: %w", err)
	}

	if b, _, ok, err := p.db.Get(ctx, KeySettings); err != nil {
		return store.State{}, fmt.Errorf("load settings: %w", err)
	} else if ok {
		var saved map[string]any
		if err := json.Unmarshal(b, &saved); err != nil {
			return store.State{}, fmt.Errorf("load settings: %w", err)
		}
		for k, v := range saved {
			if k == store.SettingHasUpdate {
				continue
			}
			st.Settings[k] = v
		}
	}

	if b, _, ok, err := p.db.Get(ctx, KeyRoot); err != nil {
		return store.State{}, fmt.Errorf("load root: %w", err)
	} else if ok {
		root, err := mergeOver(rootOf(st), b)
		if err != nil {
			return store.State{}, fmt.Errorf("load root: %w", err)
		}
		st = root.apply(st)
	}
	st.Courses.Index = model.CourseIndex(st.Courses.Items)
	return st, nil
}

// mergeOver shallow-merges the JSON object saved over def.
func mergeOver[T any](def T, saved []byte) (T, error) {
	var out T
	base, err := json.Marshal(def)
	if err != nil {
		return out, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return out, err
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(saved, &over); err != nil {
		return out, err
	}
	for k, v := range over {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(merged, &out)
	return out, err
}

// Save writes every blob that changed since the last save.
func (p *Persister) Save(ctx context.Context, st store.State) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.save(ctx, st)
}

func (p *Persister) save(ctx context.Context, st store.State) error {
	cred := st.Auth.Credential()
	if cred.Username == "" && cred.Password == "" {
		if _, ok := p.written[KeyAuth]; ok || len(p.written) == 0 {
			if err := p.secure.Delete(KeyAuth); err != nil {
				return fmt.Errorf("save auth: %w", err)
			}
			delete(p.written, KeyAuth)
		}
	} else {
		b, err := json.Marshal(authBlob{Username: cred.Username, Password: cred.Password})
		if err != nil {
			return err
		}
		if !bytes.Equal(p.written[KeyAuth], b) {
			if err := p.secure.Set(KeyAuth, b); err != nil {
				return fmt.Errorf("save auth: %w", err)
			}
			p.written[KeyAuth] = b
		}
	}

	settings, err := json.Marshal(st.Settings.Persistable())
	if err != nil {
		return err
	}
	if err := p.put(ctx, KeySettings, settings); err != nil {
		return err
	}
	root, err := json.Marshal(rootOf(st))
	if err != nil {
		return err
	}
	return p.put(ctx, KeyRoot, root)
}

func (p *Persister) put(ctx context.Context, key string, b []byte) error {
	if bytes.Equal(p.written[key], b) {
		return nil
	}
	if err := p.db.Put(ctx, key, blobVersion, b, p.now()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	p.written[key] = b
	p.log.Debug("blob saved", zap.String("key", key), zap.Int("bytes", len(b)))
	return nil
}

// Attach saves st after its changes settle. The returned func detaches.
func (p *Persister) Attach(st *store.Store) func() {
	p.mu.Lock()
	p.st = st
	p.mu.Unlock()
	unsub := st.Subscribe(func(store.State, store.Action) { p.w.Notify() })
	p.mu.Lock()
	p.unsub = unsub
	p.mu.Unlock()
	return func() {
		unsub()
		p.w.Stop()
	}
}

func (p *Persister) saveAttached(ctx context.Context) error {
	p.mu.Lock()
	st := p.st
	p.mu.Unlock()
	if st == nil {
		return nil
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.save(ctx, st.Snapshot())
}

// Flush writes pending changes of the attached store immediately.
func (p *Persister) Flush(ctx context.Context) error {
	return p.w.Flush(ctx)
}

// Purge deletes every saved blob, then writes st's current state so the
// next start sees the post-logout shape. Automatic saves are paused for the
// duration and always resumed.
func (p *Persister) Purge(ctx context.Context, st store.State) error {
	p.w.Pause()
	defer p.w.Resume()

	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	if err := p.db.DeleteAll(ctx); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if err := p.secure.Delete(KeyAuth); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	p.written = map[string][]byte{}
	if err := p.save(ctx, st); err != nil {
		return fmt.Errorf("purge: re-prime: %w", err)
	}
	p.log.Info("persisted state purged")
	return nil
}

func (p *Persister) Close() error {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	p.w.Stop()
	return p.db.Close()
}
