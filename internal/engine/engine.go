// Package engine assembles the store, portal gateway, authenticator,
// reconciler and persistence into the single object the CLI drives.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"learnsync/internal/annotate"
	"learnsync/internal/auth"
	"learnsync/internal/config"
	"learnsync/internal/gateway"
	"learnsync/internal/model"
	"learnsync/internal/persist"
	"learnsync/internal/reconcile"
	"learnsync/internal/sso"
	"learnsync/internal/store"
	"learnsync/internal/views"
)

const keyringService = "learnsync"

var ErrUnknownAssignment = errors.New("assignment not found")

type Options struct {
	// Gateway replaces the HTTP portal client.
	Gateway gateway.Gateway
	// Secure replaces the secure store chosen by the config.
	Secure persist.SecureStore
	// Browser builds the driver for each browser sign-on.
	Browser func() sso.Browser
	Logger  *zap.Logger
	Now     func() time.Time
}

type Engine struct {
	cfg *config.Config
	log *zap.Logger

	st      *store.Store
	auth    *auth.Authenticator
	rec     *reconcile.Reconciler
	persist *persist.Persister
	detach  func()
	search  *views.Cache

	loginURL   string
	newBrowser func() sso.Browser
	// browserFallback lets ensureSession answer a sign-on challenge with
	// LoginSSO.
	browserFallback bool
}

// New restores saved state from cfg.DataDir and wires every component.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	secure := opts.Secure
	if secure == nil {
		s, err := secureStore(cfg)
		if err != nil {
			return nil, err
		}
		secure = s
	}
	db, err := persist.OpenDB(ctx, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	p := persist.New(db, secure, persist.Options{Debounce: cfg.PersistDebounce, Logger: log, Now: now})
	initial, err := p.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client := gateway.NewClient(gateway.Config{
		IDBase:    cfg.IDBase,
		LearnBase: cfg.LearnBase,
		Timeout:   cfg.HTTPTimeout,
		Logger:    log,
	})
	var gw gateway.Gateway = client
	if opts.Gateway != nil {
		gw = opts.Gateway
	}

	st := store.New(initial, log)
	a := auth.New(gw, st, log)
	e := &Engine{
		cfg:      cfg,
		log:      log.Named("engine"),
		st:       st,
		auth:     a,
		rec:      reconcile.New(a, st, reconcile.Options{Concurrency: cfg.FetchConcurrency, Now: now, Logger: log}),
		persist:  p,
		detach:   p.Attach(st),
		search:   views.NewCache(time.Minute),
		loginURL: client.LoginURL(),
	}
	e.newBrowser = opts.Browser
	if e.newBrowser == nil {
		e.newBrowser = func() sso.Browser {
			return sso.NewChrome(sso.ChromeOptions{Headless: cfg.SSOHeadless, Logger: log})
		}
	}
	return e, nil
}

func secureStore(cfg *config.Config) (persist.SecureStore, error) {
	switch cfg.SecureBackend {
	case config.SecureFile:
		return persist.NewSealedFileStore(cfg.SealedPath(), cfg.SecurePassphrase)
	case config.SecureKeyring, "":
		return persist.KeyringStore{Service: keyringService}, nil
	}
	return nil, fmt.Errorf("unknown secure backend %q", cfg.SecureBackend)
}

func (e *Engine) Snapshot() store.State { return e.st.Snapshot() }

func (e *Engine) Dispatch(a store.Action) store.State { return e.st.Dispatch(a) }

func (e *Engine) Subscribe(l store.Listener) func() { return e.st.Subscribe(l) }

// Login authenticates with the given credential, or the saved one when both
// are empty.
func (e *Engine) Login(ctx context.Context, username, password string) (model.Credential, error) {
	return e.auth.Login(ctx, username, password)
}

// LoginSSO signs on through the identity provider's page in a browser.
func (e *Engine) LoginSSO(ctx context.Context, username, password string) (model.Credential, error) {
	cred := model.Credential{Username: username, Password: password}
	if username == "" && password == "" {
		cred = e.st.Snapshot().Auth.Credential()
	}
	if cred.Empty() {
		return model.Credential{}, auth.ErrMissingCredential
	}
	flow := sso.NewFlow(e.newBrowser(), e.auth, sso.Options{
		LoginURL:      e.loginURL,
		RoamingPrefix: e.cfg.RoamingPrefix,
		Timeout:       e.cfg.SSOTimeout,
		DeviceName:    e.cfg.SSODeviceName,
		Logger:        e.log,
	})
	return flow.Run(ctx, cred)
}

// Logout clears the session and the store, then replaces everything saved
// with the cleared state. Settings survive.
func (e *Engine) Logout(ctx context.Context) error {
	e.auth.Logout()
	e.search.Flush()
	return e.persist.Purge(ctx, e.st.Snapshot())
}

// FallBackToBrowser makes later syncs and submissions sign on through the
// browser when the portal challenges the saved credential. The captured
// fields are never saved, so each process has to do this on its own.
func (e *Engine) FallBackToBrowser(on bool) { e.browserFallback = on }

// ensureSession logs in with the saved credential when no session is open.
func (e *Engine) ensureSession(ctx context.Context) error {
	if _, err := e.auth.Session(); err == nil {
		return nil
	}
	_, err := e.auth.Login(ctx, "", "")
	if err != nil && e.browserFallback && errors.Is(err, gateway.ErrSSOChallenge) {
		e.log.Info("portal asked for a browser sign-on")
		_, err = e.LoginSSO(ctx, "", "")
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Sync refreshes courses and then every content kind for every course.
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.ensureSession(ctx); err != nil {
		return err
	}
	if err := e.rec.SyncCourses(ctx); err != nil {
		return err
	}
	return e.rec.FetchAll(ctx, e.st.Snapshot().Courses.IDs())
}

// SyncKind refreshes one content kind for every course.
func (e *Engine) SyncKind(ctx context.Context, kind model.Kind) error {
	if err := e.ensureSession(ctx); err != nil {
		return err
	}
	if len(e.st.Snapshot().Courses.Items) == 0 {
		if err := e.rec.SyncCourses(ctx); err != nil {
			return err
		}
	}
	return e.rec.FetchForCourses(ctx, kind, e.st.Snapshot().Courses.IDs())
}

// SyncCourse refreshes the given kinds of one course, leaving other
// courses untouched. No kinds means all of them.
func (e *Engine) SyncCourse(ctx context.Context, courseID string, kinds ...model.Kind) error {
	if err := e.ensureSession(ctx); err != nil {
		return err
	}
	if len(kinds) == 0 {
		kinds = model.Kinds
	}
	var errs []error
	for _, k := range kinds {
		if err := e.rec.FetchForCourse(ctx, k, courseID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// SyncCourses refreshes only the semester and course lists.
func (e *Engine) SyncCourses(ctx context.Context) error {
	if err := e.ensureSession(ctx); err != nil {
		return err
	}
	return e.rec.SyncCourses(ctx)
}

func (e *Engine) NoticeViews() views.Views[model.Notice] {
	st := e.st.Snapshot()
	return views.Derive(st.Notices.Items, st.Notices.Sets, st.Courses.Hidden)
}

func (e *Engine) AssignmentViews() views.Views[model.Assignment] {
	st := e.st.Snapshot()
	return views.Derive(st.Assignments.Items, st.Assignments.Sets, st.Courses.Hidden)
}

func (e *Engine) FileViews() views.Views[model.File] {
	st := e.st.Snapshot()
	return views.Derive(st.Files.Items, st.Files.Sets, st.Courses.Hidden)
}

// Results holds ranked matches per kind. Kinds are ranked independently.
type Results struct {
	Notices     []views.Match[model.Notice]     `json:"notices"`
	Assignments []views.Match[model.Assignment] `json:"assignments"`
	Files       []views.Match[model.File]       `json:"files"`
}

// Search matches query against every kind. Indices are reused until the
// store changes.
func (e *Engine) Search(query string) Results {
	st := e.st.Snapshot()
	key := func(k model.Kind) string { return fmt.Sprintf("%s@%d", k, st.Revision) }
	notices := views.Cached(e.search, key(model.KindNotice), func() *views.Index[model.Notice] {
		return views.NewIndex(st.Notices.Items, views.NoticeFields)
	})
	assignments := views.Cached(e.search, key(model.KindAssignment), func() *views.Index[model.Assignment] {
		return views.NewIndex(st.Assignments.Items, views.AssignmentFields)
	})
	files := views.Cached(e.search, key(model.KindFile), func() *views.Index[model.File] {
		return views.NewIndex(st.Files.Items, views.FileFields)
	})
	return Results{
		Notices:     notices.Search(query),
		Assignments: assignments.Search(query),
		Files:       files.Search(query),
	}
}

type Submission struct {
	AssignmentID string
	Content      string
	// FilePath, when set, is uploaded as the attachment.
	FilePath string
	// RemoveAttachment deletes the previously uploaded attachment.
	RemoveAttachment bool
	OnProgress       func(sent, total int64)
}

// Submit hands in an assignment and refreshes its course's assignments.
func (e *Engine) Submit(ctx context.Context, sub Submission) error {
	var target *model.Assignment
	for _, a := range e.st.Snapshot().Assignments.Items {
		if a.ID == sub.AssignmentID {
			target = &a
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAssignment, sub.AssignmentID)
	}
	if err := e.ensureSession(ctx); err != nil {
		return err
	}
	sess, err := e.auth.Session()
	if err != nil {
		return err
	}

	req := gateway.SubmitRequest{
		StudentHomeworkID: target.StudentHomeworkID,
		Content:           sub.Content,
		Remove:            sub.RemoveAttachment,
		OnProgress:        sub.OnProgress,
	}
	if sub.FilePath != "" {
		f, err := os.Open(sub.FilePath)
		if err != nil {
			return err
		}
		defer f.Close()
		req.Attachment = &gateway.Upload{Name: filepath.Base(sub.FilePath), Reader: f}
	}
	if err := sess.Submit(ctx, req); err != nil {
		return fmt.Errorf("submit %s: %w", sub.AssignmentID, err)
	}
	e.log.Info("assignment submitted", zap.String("assignment", sub.AssignmentID))
	return e.rec.FetchForCourse(ctx, model.KindAssignment, target.CourseID)
}

func (e *Engine) SetFlag(kind model.Kind, flag annotate.Flag, id string, value bool) store.State {
	return e.st.Dispatch(store.SetFlag{Kind: kind, Flag: flag, ID: id, Value: value})
}

func (e *Engine) SetFlagBulk(kind model.Kind, flag annotate.Flag, ids []string, value bool) store.State {
	return e.st.Dispatch(store.SetFlagBulk{Kind: kind, Flag: flag, IDs: ids, Value: value})
}

func (e *Engine) MarkAllRead(kind model.Kind) store.State {
	return e.st.Dispatch(store.MarkAllRead{Kind: kind})
}

func (e *Engine) SetCourseHidden(courseID string, hidden bool) store.State {
	return e.st.Dispatch(store.SetCourseHidden{CourseID: courseID, Value: hidden})
}

func (e *Engine) SetSetting(u store.SettingUpdate) store.State {
	return e.st.Dispatch(store.SetSetting{Update: u})
}

// SelectSemester pins the semester whose courses are synced. An empty id
// returns to the portal's current semester.
func (e *Engine) SelectSemester(id string) store.State {
	return e.st.Dispatch(store.SetCurrentSemester{ID: id})
}

// Flush writes pending state changes now.
func (e *Engine) Flush(ctx context.Context) error {
	return e.persist.Flush(ctx)
}

func (e *Engine) Close(ctx context.Context) error {
	err := e.persist.Flush(ctx)
	e.detach()
	if cerr := e.persist.Close(); err == nil {
		err = cerr
	}
	_ = e.log.Sync()
	return err
}
