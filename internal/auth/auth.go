// Package auth runs the login state machine and owns the active portal
// session handle.
package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"learnsync/internal/gateway"
	"learnsync/internal/model"
	"learnsync/internal/store"
)

var (
	ErrMissingCredential = errors.New("no credential given and none stored")
	ErrNotLoggedIn       = errors.New("not logged in")
	// ErrSuperseded is returned to a login call whose result was discarded
	// because a later call started after it.
	ErrSuperseded = errors.New("login superseded by a newer attempt")
)

type Authenticator struct {
	gw  gateway.Gateway
	st  *store.Store
	log *zap.Logger

	mu   sync.Mutex
	seq  uint64
	sess gateway.Session
}

func New(gw gateway.Gateway, st *store.Store, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{gw: gw, st: st, log: log.Named("auth")}
}

// Login authenticates with the given credential, or with the stored one
// when username and password are both empty. A successful login triggers
// one user info fetch.
func (a *Authenticator) Login(ctx context.Context, username, password string) (model.Credential, error) {
	cred := model.Credential{Username: username, Password: password}
	if username == "" && password == "" {
		cred = a.st.Snapshot().Auth.Credential()
	}
	if cred.Empty() {
		return model.Credential{}, ErrMissingCredential
	}
	return a.login(ctx, cred, nil)
}

// LoginWithFingerprint completes a browser sign-on with the anti-forgery
// fields it captured.
func (a *Authenticator) LoginWithFingerprint(ctx context.Context, cred model.Credential, fp model.FingerprintFields) (model.Credential, error) {
	if cred.Empty() {
		return model.Credential{}, ErrMissingCredential
	}
	return a.login(ctx, cred, &fp)
}

func (a *Authenticator) login(ctx context.Context, cred model.Credential, fp *model.FingerprintFields) (model.Credential, error) {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.mu.Unlock()

	a.st.Dispatch(store.LoginRequest{Credential: cred})
	sess, err := a.gw.Login(ctx, cred, fp)

	a.mu.Lock()
	if seq != a.seq {
		a.mu.Unlock()
		a.log.Debug("discarding superseded login result", zap.String("user", cred.Username))
		return model.Credential{}, ErrSuperseded
	}
	if err == nil {
		a.sess = sess
	}
	a.mu.Unlock()

	if err != nil {
		reason := gateway.ReasonOf(err)
		a.log.Warn("login failed", zap.String("user", cred.Username), zap.String("reason", string(reason)), zap.Error(err))
		a.st.Dispatch(store.LoginFailure{Err: err.Error(), Reason: string(reason)})
		return model.Credential{}, err
	}

	a.st.Dispatch(store.LoginSuccess{Credential: cred})
	a.log.Info("login succeeded", zap.String("user", cred.Username), zap.Bool("sso", fp != nil))
	// A user info failure lands in the store; the login still stands.
	_ = a.FetchUserInfo(ctx)
	return cred, nil
}

// FetchUserInfo loads the user's name and department into the store.
func (a *Authenticator) FetchUserInfo(ctx context.Context) error {
	sess, err := a.Session()
	if err != nil {
		return err
	}
	epoch := a.st.Epoch()
	a.st.Dispatch(store.UserInfoRequest{})
	info, err := sess.UserInfo(ctx)
	if err != nil {
		a.log.Warn("user info failed", zap.Error(err))
		a.st.Dispatch(store.UserInfoFailure{Epoch: epoch, Err: err.Error()})
		return err
	}
	a.st.Dispatch(store.UserInfoSuccess{Epoch: epoch, Info: info})
	return nil
}

// Session returns the active session handle.
func (a *Authenticator) Session() (gateway.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return nil, ErrNotLoggedIn
	}
	return a.sess, nil
}

// Logout drops the session and clears the store.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	a.seq++
	a.sess = nil
	a.mu.Unlock()
	a.st.Dispatch(store.ClearStore{})
	a.log.Info("logged out")
}
