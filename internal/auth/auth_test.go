package auth

import (
	"context"
	"errors"
	"testing"

	"learnsync/internal/gateway"
	"learnsync/internal/gateway/gatewaytest"
	"learnsync/internal/model"
	"learnsync/internal/store"
)

func newAuth(t *testing.T, gw *gatewaytest.Gateway) (*Authenticator, *store.Store) {
	t.Helper()
	st := store.New(store.Initial(), nil)
	return New(gw, st, nil), st
}

func TestLoginSuccessFetchesUserInfoOnce(t *testing.T) {
	t.Parallel()

	portal := &gatewaytest.Portal{User: model.UserInfo{Name: "Zhang", Department: "CS"}}
	a, st := newAuth(t, &gatewaytest.Gateway{Password: "pw", Portal: portal})

	var userFetches int
	st.Subscribe(func(_ store.State, act store.Action) {
		if _, ok := act.(store.UserInfoRequest); ok {
			userFetches++
		}
	})

	cred, err := a.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cred.Username != "alice" {
		t.Fatalf("cred = %#v", cred)
	}
	if userFetches != 1 {
		t.Fatalf("user info fetches = %d, want 1", userFetches)
	}
	snap := st.Snapshot()
	if !snap.Auth.LoggedIn || snap.Auth.LoggingIn {
		t.Fatalf("auth = %#v", snap.Auth)
	}
	if snap.User.Info.Name != "Zhang" {
		t.Fatalf("user = %#v", snap.User)
	}
	if _, err := a.Session(); err != nil {
		t.Fatalf("Session: %v", err)
	}
}

func TestLoginSurvivesUserInfoFailure(t *testing.T) {
	t.Parallel()

	portal := &gatewaytest.Portal{UserInfoErr: errors.New("profile down")}
	a, st := newAuth(t, &gatewaytest.Gateway{Password: "pw", Portal: portal})

	if _, err := a.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	snap := st.Snapshot()
	if !snap.Auth.LoggedIn {
		t.Fatalf("auth = %#v", snap.Auth)
	}
	if snap.User.Fetching || snap.User.Error == "" {
		t.Fatalf("user = %#v", snap.User)
	}
}

func TestLoginFallsBackToStoredCredential(t *testing.T) {
	t.Parallel()

	gw := &gatewaytest.Gateway{Password: "pw"}
	a, st := newAuth(t, gw)

	if _, err := a.Login(context.Background(), "", ""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if len(gw.Logins()) != 0 {
		t.Fatalf("gateway called without a credential")
	}

	st.Dispatch(store.LoginSuccess{Credential: model.Credential{Username: "alice", Password: "pw"}})
	cred, err := a.Login(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cred.Username != "alice" {
		t.Fatalf("cred = %#v", cred)
	}
}

func TestLoginBadCredentialRecordsFailure(t *testing.T) {
	t.Parallel()

	a, st := newAuth(t, &gatewaytest.Gateway{Password: "pw"})
	_, err := a.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, gateway.ErrBadCredential) {
		t.Fatalf("expected bad credential, got %v", err)
	}
	snap := st.Snapshot()
	if snap.Auth.LoggedIn || snap.Auth.Error == "" || snap.Auth.Reason != string(gateway.ReasonBadCredential) {
		t.Fatalf("auth = %#v", snap.Auth)
	}
	if snap.Auth.Password != "wrong" {
		t.Fatalf("credential not retained for retry")
	}
	if _, err := a.Session(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected no session, got %v", err)
	}
}

func TestLoginSSOChallengeSurfacesReason(t *testing.T) {
	t.Parallel()

	gw := &gatewaytest.Gateway{LoginErr: &gateway.Error{Op: "login", Reason: gateway.ReasonSSOChallenge}}
	a, st := newAuth(t, gw)
	_, err := a.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, gateway.ErrSSOChallenge) {
		t.Fatalf("expected sso challenge, got %v", err)
	}
	if st.Snapshot().Auth.Reason != string(gateway.ReasonSSOChallenge) {
		t.Fatalf("reason = %q", st.Snapshot().Auth.Reason)
	}
}

func TestLoginWithFingerprintPassesFields(t *testing.T) {
	t.Parallel()

	gw := &gatewaytest.Gateway{Password: "pw"}
	a, _ := newAuth(t, gw)
	fp := model.FingerprintFields{FingerPrint: "a", FingerGenPrint: "b", FingerGenPrint3: "c"}
	if _, err := a.LoginWithFingerprint(context.Background(), model.Credential{Username: "alice", Password: "pw"}, fp); err != nil {
		t.Fatalf("LoginWithFingerprint: %v", err)
	}
	logins := gw.Logins()
	if len(logins) != 1 || logins[0].Fingerprint == nil || *logins[0].Fingerprint != fp {
		t.Fatalf("logins = %#v", logins)
	}
}

func TestLogoutClearsSessionAndStore(t *testing.T) {
	t.Parallel()

	a, st := newAuth(t, &gatewaytest.Gateway{Password: "pw"})
	if _, err := a.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	epoch := st.Epoch()
	a.Logout()

	if _, err := a.Session(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("session kept after logout")
	}
	snap := st.Snapshot()
	if snap.Auth.LoggedIn || snap.Auth.Username != "" {
		t.Fatalf("auth = %#v", snap.Auth)
	}
	if snap.Epoch != epoch+1 {
		t.Fatalf("epoch = %d, want %d", snap.Epoch, epoch+1)
	}
}
