// Package sso drives the identity provider's login page in a browser to
// capture the anti-forgery fields a second-factor login needs, then hands
// them to the authenticator.
package sso

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnsync/internal/model"
)

//go:embed page.js
var pageScript string

const DefaultTimeout = 3 * time.Minute

var (
	ErrTimeout    = errors.New("sso: timed out waiting for sign-on")
	ErrFlowFailed = errors.New("sso: flow failed")
)

type State int

const (
	Idle State = iota
	PageLoading
	FormObserved
	CredentialInjected
	FormSubmitted
	SessionEstablished
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PageLoading:
		return "page-loading"
	case FormObserved:
		return "form-observed"
	case CredentialInjected:
		return "credential-injected"
	case FormSubmitted:
		return "form-submitted"
	case SessionEstablished:
		return "session-established"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Navigation is a document request the browser paused. Exactly one of
// Continue or Cancel must be called.
type Navigation struct {
	URL    string
	decide func(follow bool)
}

func NewNavigation(url string, decide func(follow bool)) *Navigation {
	return &Navigation{URL: url, decide: decide}
}

func (n *Navigation) Continue() { n.decide(true) }
func (n *Navigation) Cancel()   { n.decide(false) }

// Event is either a raw page message or a paused navigation.
type Event struct {
	Message    []byte
	Navigation *Navigation
}

// Browser is the driver the flow runs against.
type Browser interface {
	// Open starts a clean browsing context, installs script on every new
	// document and loads url.
	Open(ctx context.Context, url, script string) error
	// Evaluate runs js in the current page and reports its boolean result.
	Evaluate(ctx context.Context, js string) (bool, error)
	Events() <-chan Event
	Close() error
}

// Logins completes the sign-on with the captured fields.
type Logins interface {
	LoginWithFingerprint(ctx context.Context, cred model.Credential, fp model.FingerprintFields) (model.Credential, error)
}

type Options struct {
	LoginURL string
	// RoamingPrefix marks the post-authentication redirect. Navigations to
	// it are cancelled and end the flow.
	RoamingPrefix string
	Timeout       time.Duration
	DeviceName    string
	Logger        *zap.Logger
	// OnState, when set, observes every state change.
	OnState func(State)
}

type Flow struct {
	browser Browser
	logins  Logins
	opts    Options
	log     *zap.Logger

	fingerprint string

	mu       sync.Mutex
	state    State
	injected bool
	fields   model.FingerprintFields
}

func NewFlow(b Browser, l Logins, opts Options) *Flow {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Flow{
		browser:     b,
		logins:      l,
		opts:        opts,
		log:         opts.Logger.Named("sso"),
		fingerprint: newFingerprint(),
	}
}

// newFingerprint returns 32 lowercase hex characters.
func newFingerprint() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (f *Flow) Fingerprint() string { return f.fingerprint }

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	prev := f.state
	f.state = s
	f.mu.Unlock()
	if prev == s {
		return
	}
	f.log.Debug("state", zap.Stringer("from", prev), zap.Stringer("to", s))
	if f.opts.OnState != nil {
		f.opts.OnState(s)
	}
}

func (f *Flow) fail(err error) error {
	f.setState(Failed)
	f.log.Warn("sign-on failed", zap.Error(err))
	return err
}

// Run drives the browser until the session is established, the flow fails,
// or the timeout expires. The browser is closed on return.
func (f *Flow) Run(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if cred.Empty() {
		return model.Credential{}, f.fail(fmt.Errorf("%w: missing credential", ErrFlowFailed))
	}
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()
	defer f.browser.Close()

	f.setState(PageLoading)
	opened := make(chan error, 1)
	go func() { opened <- f.browser.Open(ctx, f.opts.LoginURL, f.script()) }()
	events := f.browser.Events()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return model.Credential{}, f.fail(ErrTimeout)
			}
			return model.Credential{}, f.fail(ctx.Err())
		case err := <-opened:
			opened = nil
			if err != nil {
				return model.Credential{}, f.fail(fmt.Errorf("%w: open login page: %v", ErrFlowFailed, err))
			}
		case ev, ok := <-events:
			if !ok {
				return model.Credential{}, f.fail(fmt.Errorf("%w: browser closed", ErrFlowFailed))
			}
			if ev.Navigation != nil {
				if !strings.HasPrefix(ev.Navigation.URL, f.opts.RoamingPrefix) {
					ev.Navigation.Continue()
					continue
				}
				ev.Navigation.Cancel()
				return f.complete(ctx, cred)
			}
			f.handle(ctx, cred, ev.Message)
		}
	}
}

func (f *Flow) complete(ctx context.Context, cred model.Credential) (model.Credential, error) {
	f.mu.Lock()
	fields := f.fields
	f.mu.Unlock()
	if !fields.Complete() {
		return model.Credential{}, f.fail(fmt.Errorf("%w: reached roaming redirect without fingerprint fields", ErrFlowFailed))
	}
	out, err := f.logins.LoginWithFingerprint(ctx, cred, fields)
	if err != nil {
		return model.Credential{}, f.fail(fmt.Errorf("%w: %w", ErrFlowFailed, err))
	}
	f.setState(SessionEstablished)
	f.log.Info("sign-on complete", zap.String("user", out.Username))
	return out, nil
}

func (f *Flow) handle(ctx context.Context, cred model.Credential, raw []byte) {
	msg, err := decodeMessage(raw)
	if err != nil {
		f.log.Warn("dropping page message", zap.Error(err))
		return
	}
	switch m := msg.(type) {
	case formObserved:
		f.mu.Lock()
		already := f.injected
		f.injected = true
		f.mu.Unlock()
		if already {
			return
		}
		f.setState(FormObserved)
		ok, err := f.browser.Evaluate(ctx, injectScript(cred))
		if err != nil || !ok {
			f.log.Warn("credential injection failed", zap.Bool("ok", ok), zap.Error(err))
			f.mu.Lock()
			f.injected = false
			f.mu.Unlock()
		}
	case credentialInjected:
		f.setState(CredentialInjected)
	case formSubmitted:
		f.mu.Lock()
		f.fields = m.Fields
		f.mu.Unlock()
		f.setState(FormSubmitted)
	case logLine:
		f.log.Debug("page", zap.String("message", m.Text))
	}
}

func (f *Flow) script() string {
	cfg, _ := json.Marshal(map[string]string{
		"fingerprint": f.fingerprint,
		"deviceName":  f.opts.DeviceName,
	})
	return "window.__learnsync = " + string(cfg) + ";\n" + pageScript
}

func injectScript(cred model.Credential) string {
	user, _ := json.Marshal(cred.Username)
	pass, _ := json.Marshal(cred.Password)
	return fmt.Sprintf("window.__learnsyncInject(%s, %s)", user, pass)
}
