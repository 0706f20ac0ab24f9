package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"learnsync/internal/model"
)

const (
	DefaultIDBase    = "https://id.tsinghua.edu.cn"
	DefaultLearnBase = "https://learn.tsinghua.edu.cn"

	// RoamingPath is where the identity provider sends the browser once a
	// login has been accepted.
	RoamingPath = "/f/j_spring_security_thauth_roaming_entry"

	loginPath     = "/do/off/ui/auth/login/check"
	coursePage    = "/f/wlxt/index/course/student/"
	semestersPath = "/b/wlxt/kc/v_wlkc_xs_xktjb_coassb/queryxnxq"
	currentPath   = "/b/kc/zhjw_v_code_xnxq/getCurrentAndNextSemester"
	coursesPath   = "/b/wlxt/kc/v_wlkc_xs_xkb_kcb_extend/student/loadCourseBySemesterId/%s/zh"
	noticesPath   = "/b/wlxt/kcgg/wlkc_ggb/student/kcggListXs"
	filesPath     = "/b/wlxt/kj/wlkc_kjxxb/student/kjxxbByWlkcidAndSizeForStudent"
	submitPath    = "/b/wlxt/kczy/zy/student/tjzy"
	pageSize      = "200"
)

var (
	csrfRe    = regexp.MustCompile(`&_csrf=(\S*)"`)
	replaceRe = regexp.MustCompile(`window\.location\.replace\("([^"]+)"\)`)
)

type Config struct {
	IDBase    string
	LearnBase string
	Timeout   time.Duration
	// Transport overrides the HTTP transport; tests point it at httptest.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	cfg Config
	log *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.IDBase == "" {
		cfg.IDBase = DefaultIDBase
	}
	if cfg.LearnBase == "" {
		cfg.LearnBase = DefaultLearnBase
	}
	cfg.IDBase = strings.TrimRight(cfg.IDBase, "/")
	cfg.LearnBase = strings.TrimRight(cfg.LearnBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, log: log.Named("gateway")}
}

// RoamingPrefix is the URL prefix that marks a completed sign-on.
func (c *Client) RoamingPrefix() string {
	return c.cfg.LearnBase + RoamingPath
}

// LoginURL is the identity provider page the browser sign-on starts from.
func (c *Client) LoginURL() string {
	return c.cfg.IDBase + "/do/off/ui/auth/login/form/bb5df85216504820be7bba2b0ae1535b/0"
}

func (c *Client) Login(ctx context.Context, cred model.Credential, fp *model.FingerprintFields) (Session, error) {
	s := &session{c: c, cred: cred, fp: fp}
	if err := s.login(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type session struct {
	c    *Client
	cred model.Credential
	fp   *model.FingerprintFields

	mu   sync.Mutex
	http *http.Client
	csrf string
}

func (s *session) Credential() model.Credential { return s.cred }

func (s *session) client() (*http.Client, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.http, s.csrf
}

// login starts from an empty cookie jar, posts the credential form, follows
// the roaming ticket and scrapes the CSRF token.
func (s *session) login(ctx context.Context) error {
	const op = "login"
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	hc := &http.Client{Jar: jar, Timeout: s.c.cfg.Timeout, Transport: s.c.cfg.Transport}

	form := url.Values{}
	form.Set("i_user", s.cred.Username)
	form.Set("i_pass", s.cred.Password)
	form.Set("i_captcha", "")
	if s.fp != nil {
		form.Set("fingerPrint", s.fp.FingerPrint)
		form.Set("fingerGenPrint", s.fp.FingerGenPrint)
		form.Set("fingerGenPrint3", s.fp.FingerGenPrint3)
	} else {
		form.Set("fingerPrint", "")
		form.Set("fingerGenPrint", "")
		form.Set("fingerGenPrint3", "")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.cfg.IDBase+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, _, err := do(hc, req)
	if err != nil {
		return newError(op, ReasonNetwork, err)
	}

	roaming, err := roamingURL(body)
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	if roaming == "" {
		if bytes.Contains(body, []byte("doubleAuth")) || bytes.Contains(body, []byte("二次认证")) {
			return newError(op, ReasonSSOChallenge, errors.New("identity provider requires browser verification"))
		}
		return newError(op, ReasonBadCredential, errors.New("credential rejected"))
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, roaming, nil)
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	if _, _, err := do(hc, req); err != nil {
		return newError(op, ReasonNetwork, err)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, s.c.cfg.LearnBase+coursePage, nil)
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	page, _, err := do(hc, req)
	if err != nil {
		return newError(op, ReasonNetwork, err)
	}
	m := csrfRe.FindSubmatch(page)
	if m == nil {
		return errorf(op, ReasonSessionExpired, "csrf token not found")
	}

	s.mu.Lock()
	s.http = hc
	s.csrf = string(m[1])
	s.mu.Unlock()
	s.c.log.Info("logged in", zap.String("user", s.cred.Username), zap.Bool("fingerprint", s.fp != nil))
	return nil
}

// roamingURL extracts the roaming ticket URL from a login response.
func roamingURL(body []byte) (string, error) {
	if m := replaceRe.FindSubmatch(body); m != nil && strings.Contains(string(m[1]), "roaming") {
		return string(m[1]), nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var out string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "roaming") {
			out = href
			return false
		}
		return true
	})
	return out, nil
}

func do(hc *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return body, resp, nil
}

func looksLikeHTML(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// getJSON fetches path under the learning host and decodes it into v. A
// login page instead of JSON means the session expired; that case is
// retried once after a fresh login.
func (s *session) getJSON(ctx context.Context, op, path string, q url.Values, v any) error {
	err := s.getJSONOnce(ctx, op, path, q, v)
	if !errors.Is(err, ErrSessionExpired) {
		return err
	}
	s.c.log.Info("session expired, logging in again", zap.String("op", op))
	if lerr := s.login(ctx); lerr != nil {
		return lerr
	}
	return s.getJSONOnce(ctx, op, path, q, v)
}

func (s *session) getJSONOnce(ctx context.Context, op, path string, q url.Values, v any) error {
	hc, csrf := s.client()
	if q == nil {
		q = url.Values{}
	}
	q.Set("_csrf", csrf)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.c.cfg.LearnBase+path+"?"+q.Encode(), nil)
	if err != nil {
		return newError(op, ReasonUnknown, err)
	}
	body, resp, err := do(hc, req)
	if err != nil {
		return newError(op, ReasonNetwork, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errorf(op, ReasonSessionExpired, "status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return errorf(op, ReasonNetwork, "status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return errorf(op, ReasonUnknown, "status %d", resp.StatusCode)
	case looksLikeHTML(resp, body):
		return errorf(op, ReasonSessionExpired, "got login page")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newError(op, ReasonUnknown, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (s *session) getHTML(ctx context.Context, op, path string) (*goquery.Document, error) {
	hc, _ := s.client()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.c.cfg.LearnBase+path, nil)
	if err != nil {
		return nil, newError(op, ReasonUnknown, err)
	}
	body, resp, err := do(hc, req)
	if err != nil {
		return nil, newError(op, ReasonNetwork, err)
	}
	if resp.StatusCode >= 300 {
		return nil, errorf(op, ReasonUnknown, "status %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, newError(op, ReasonUnknown, err)
	}
	return doc, nil
}

func (s *session) UserInfo(ctx context.Context) (model.UserInfo, error) {
	doc, err := s.getHTML(ctx, "user info", coursePage)
	if err != nil {
		return model.UserInfo{}, err
	}
	info := model.UserInfo{
		Name:       strings.TrimSpace(doc.Find("a.user-log").First().Text()),
		Department: strings.TrimSpace(doc.Find(".fl.up-img-info p:nth-child(2) label").First().Text()),
	}
	if info.Name == "" {
		return model.UserInfo{}, errorf("user info", ReasonSessionExpired, "user name not found on page")
	}
	return info, nil
}

func (s *session) SemesterIDs(ctx context.Context) ([]string, error) {
	var raw []*string
	if err := s.getJSON(ctx, "semesters", semestersPath, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if id != nil && *id != "" {
			out = append(out, *id)
		}
	}
	return out, nil
}

func (s *session) CurrentSemester(ctx context.Context) (model.Semester, error) {
	var resp struct {
		Result semesterRow `json:"result"`
	}
	if err := s.getJSON(ctx, "current semester", currentPath, nil, &resp); err != nil {
		return model.Semester{}, err
	}
	return resp.Result.toModel(), nil
}

func (s *session) Courses(ctx context.Context, semesterID string) ([]model.Course, error) {
	var resp struct {
		ResultList []courseRow `json:"resultList"`
	}
	path := fmt.Sprintf(coursesPath, url.PathEscape(semesterID))
	if err := s.getJSON(ctx, "courses", path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Course, 0, len(resp.ResultList))
	for _, r := range resp.ResultList {
		out = append(out, r.toModel(semesterID))
	}
	return out, nil
}

func courseQuery(courseID string) url.Values {
	return url.Values{"wlkcid": {courseID}, "size": {pageSize}}
}

func (s *session) Notices(ctx context.Context, courseID string) ([]model.Notice, error) {
	var resp struct {
		Object struct {
			AaData []noticeRow `json:"aaData"`
		} `json:"object"`
	}
	if err := s.getJSON(ctx, "notices", noticesPath, courseQuery(courseID), &resp); err != nil {
		return nil, err
	}
	out := make([]model.Notice, 0, len(resp.Object.AaData))
	for _, r := range resp.Object.AaData {
		out = append(out, r.toModel(courseID, s.c.cfg.LearnBase))
	}
	return out, nil
}

func (s *session) Files(ctx context.Context, courseID string) ([]model.File, error) {
	var resp struct {
		Object []fileRow `json:"object"`
	}
	if err := s.getJSON(ctx, "files", filesPath, courseQuery(courseID), &resp); err != nil {
		return nil, err
	}
	out := make([]model.File, 0, len(resp.Object))
	for _, r := range resp.Object {
		out = append(out, r.toModel(courseID, s.c.cfg.LearnBase))
	}
	return out, nil
}

// homeworkLists are the three assignment endpoints: not submitted,
// submitted but not graded, graded.
var homeworkLists = []struct {
	path      string
	submitted bool
	graded    bool
}{
	{path: "/b/wlxt/kczy/zy/student/zyListWj", submitted: false, graded: false},
	{path: "/b/wlxt/kczy/zy/student/zyListYjwg", submitted: true, graded: false},
	{path: "/b/wlxt/kczy/zy/student/zyListYpg", submitted: true, graded: true},
}

func (s *session) Assignments(ctx context.Context, courseID string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, l := range homeworkLists {
		var resp struct {
			Object struct {
				AaData []homeworkRow `json:"aaData"`
			} `json:"object"`
		}
		if err := s.getJSON(ctx, "assignments", l.path, courseQuery(courseID), &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Object.AaData {
			out = append(out, r.toModel(courseID, l.submitted, l.graded, s.c.cfg.LearnBase))
		}
	}
	return out, nil
}
