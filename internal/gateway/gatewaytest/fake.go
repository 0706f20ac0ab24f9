// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"learnsync/internal/gateway"
	"learnsync/internal/model"
)

// Gateway accepts Password for any username and serves the content maps of
// its Portal.
type Gateway struct {
	Password string
	// LoginErr, when set, is returned by every Login call.
	LoginErr error
	// SSOOnly challenges every login that carries no fingerprint fields.
	SSOOnly bool
	Portal  *Portal

	mu     sync.Mutex
	logins []Login
}

type Login struct {
	Credential  model.Credential
	Fingerprint *model.FingerprintFields
}

// Portal is the server-side data. Errors keyed by course id fail that
// course's content calls.
type Portal struct {
	mu          sync.Mutex
	User        model.UserInfo
	SemesterIDs []string
	Current     model.Semester
	Courses     []model.Course
	Notices     map[string][]model.Notice
	Assignments map[string][]model.Assignment
	Files       map[string][]model.File
	Errors      map[string]error
	UserInfoErr error
	Submitted   []gateway.SubmitRequest
	SubmitErr   error
}

func (g *Gateway) Login(ctx context.Context, cred model.Credential, fp *model.FingerprintFields) (gateway.Session, error) {
	g.mu.Lock()
	g.logins = append(g.logins, Login{Credential: cred, Fingerprint: fp})
	g.mu.Unlock()
	if g.LoginErr != nil {
		return nil, g.LoginErr
	}
	if g.SSOOnly && fp == nil {
		return nil, &gateway.Error{Op: "login", Reason: gateway.ReasonSSOChallenge}
	}
	if cred.Password != g.Password {
		return nil, &gateway.Error{Op: "login", Reason: gateway.ReasonBadCredential}
	}
	p := g.Portal
	if p == nil {
		p = &Portal{}
	}
	return &Session{cred: cred, p: p}, nil
}

// Logins returns every Login call made so far.
func (g *Gateway) Logins() []Login {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Login(nil), g.logins...)
}

type Session struct {
	cred model.Credential
	p    *Portal
}

func (s *Session) Credential() model.Credential { return s.cred }

func (s *Session) UserInfo(ctx context.Context) (model.UserInfo, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.User, s.p.UserInfoErr
}

func (s *Session) SemesterIDs(ctx context.Context) ([]string, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return append([]string(nil), s.p.SemesterIDs...), nil
}

func (s *Session) CurrentSemester(ctx context.Context) (model.Semester, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.Current, nil
}

func (s *Session) Courses(ctx context.Context, semesterID string) ([]model.Course, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	var out []model.Course
	for _, c := range s.p.Courses {
		if c.SemesterID == semesterID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Session) Notices(ctx context.Context, courseID string) ([]model.Notice, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.Errors[courseID]; err != nil {
		return nil, err
	}
	return append([]model.Notice(nil), s.p.Notices[courseID]...), nil
}

func (s *Session) Assignments(ctx context.Context, courseID string) ([]model.Assignment, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.Errors[courseID]; err != nil {
		return nil, err
	}
	return append([]model.Assignment(nil), s.p.Assignments[courseID]...), nil
}

func (s *Session) Files(ctx context.Context, courseID string) ([]model.File, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.Errors[courseID]; err != nil {
		return nil, err
	}
	return append([]model.File(nil), s.p.Files[courseID]...), nil
}

func (s *Session) Submit(ctx context.Context, req gateway.SubmitRequest) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.SubmitErr != nil {
		return s.p.SubmitErr
	}
	s.p.Submitted = append(s.p.Submitted, req)
	return nil
}

// Set replaces portal fields under its lock.
func (p *Portal) Set(fn func(p *Portal)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}
