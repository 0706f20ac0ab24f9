package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Submit uploads an assignment answer. It always logs in again first so the
// CSRF token embedded in the upload URL is fresh. Failures are reduced to
// ErrSessionExpired, ErrSubmissionRejected or ErrSubmissionUnknown.
func (s *session) Submit(ctx context.Context, req SubmitRequest) error {
	const op = "submit"
	if err := s.login(ctx); err != nil {
		return newError(op, ReasonSessionExpired, err)
	}

	body, contentType, err := submitBody(req)
	if err != nil {
		return newError(op, ReasonSubmissionUnknown, err)
	}
	hc, csrf := s.client()
	u := s.c.cfg.LearnBase + submitPath + "?_csrf=" + url.QueryEscape(csrf)
	total := int64(len(body))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &progressReader{r: bytes.NewReader(body), total: total, fn: req.OnProgress})
	if err != nil {
		return newError(op, ReasonSubmissionUnknown, err)
	}
	hreq.ContentLength = total
	hreq.Header.Set("Content-Type", contentType)

	resp, rerr := hc.Do(hreq)
	if rerr != nil {
		return newError(op, ReasonSubmissionUnknown, rerr)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(op, ReasonSubmissionUnknown, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || looksLikeHTML(resp, raw) {
		return errorf(op, ReasonSessionExpired, "status %d", resp.StatusCode)
	}

	var result struct {
		Result string `json:"result"`
		Msg    string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || result.Result == "" {
		return errorf(op, ReasonSubmissionUnknown, "status %d", resp.StatusCode)
	}
	if result.Result != "success" {
		s.c.log.Warn("submission rejected", zap.String("homework", req.StudentHomeworkID), zap.String("msg", result.Msg))
		return newError(op, ReasonSubmissionRejected, errors.New("server rejected submission"))
	}
	s.c.log.Info("submitted", zap.String("homework", req.StudentHomeworkID))
	return nil
}

func submitBody(req SubmitRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"xszyid", req.StudentHomeworkID},
		{"zynr", req.Content},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if req.Attachment != nil && req.Attachment.Reader != nil {
		part, err := w.CreateFormFile("fileupload", req.Attachment.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, req.Attachment.Reader); err != nil {
			return nil, "", err
		}
	} else if err := w.WriteField("fileupload", "undefined"); err != nil {
		return nil, "", err
	}
	isDeleted := "0"
	if req.Remove {
		isDeleted = "1"
	}
	if err := w.WriteField("isDeleted", isDeleted); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
