package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"learnsync/internal/model"
)

// portalZone is the portal's wall clock for timestamps sent as text.
var portalZone = time.FixedZone("CST", 8*60*60)

// flexTime accepts epoch milliseconds or a formatted timestamp.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("time %s: %w", b, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if v, err := time.ParseInLocation(layout, s, portalZone); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("time %q: unrecognised format", s)
}

func (t flexTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

func (s flexString) int() int {
	n, _ := strconv.Atoi(strings.TrimSpace(string(s)))
	return n
}

// htmlText strips markup from a portal rich-text field.
func htmlText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

type semesterRow struct {
	ID   string   `json:"id"`
	Kssj flexTime `json:"kssj"`
	Jssj flexTime `json:"jssj"`
}

func (r semesterRow) toModel() model.Semester {
	sem := model.Semester{ID: r.ID, StartDate: r.Kssj.Time, EndDate: r.Jssj.Time, Type: model.SemesterUnknown}
	parts := strings.Split(r.ID, "-")
	if len(parts) == 3 {
		sem.StartYear, _ = strconv.Atoi(parts[0])
		sem.EndYear, _ = strconv.Atoi(parts[1])
		switch parts[2] {
		case "1":
			sem.Type = model.SemesterFall
		case "2":
			sem.Type = model.SemesterSpring
		case "3":
			sem.Type = model.SemesterSummer
		}
	}
	return sem
}

type courseRow struct {
	Wlkcid string     `json:"wlkcid"`
	Kcm    string     `json:"kcm"`
	Ywkcm  string     `json:"ywkcm"`
	Jsm    string     `json:"jsm"`
	Jsh    string     `json:"jsh"`
	Kch    string     `json:"kch"`
	Kxh    flexString `json:"kxh"`
	Sksj   []string   `json:"sksj"`
}

func (r courseRow) toModel(semesterID string) model.Course {
	return model.Course{
		SemesterID:      semesterID,
		ID:              r.Wlkcid,
		Name:            r.Kcm,
		EnglishName:     r.Ywkcm,
		TeacherName:     r.Jsm,
		TeacherNumber:   r.Jsh,
		CourseNumber:    r.Kch,
		CourseIndex:     r.Kxh.int(),
		TimeAndLocation: r.Sksj,
	}
}

type noticeRow struct {
	Ggid string   `json:"ggid"`
	Bt   string   `json:"bt"`
	Ggnr string   `json:"ggnr"`
	Fbr  string   `json:"fbrxm"`
	Fbsj flexTime `json:"fbsj"`
	Sfyd string   `json:"sfyd"`
	Sfqd string   `json:"sfqd"`
	Fjmc string   `json:"fjmc"`
	Fjbt string   `json:"fjbt"`
	Fjdx string   `json:"fjdx"`
	Wjid string   `json:"wjid"`
}

func (r noticeRow) toModel(courseID, base string) model.Notice {
	n := model.Notice{
		ID:              r.Ggid,
		CourseID:        courseID,
		Title:           htmlText(r.Bt),
		Content:         htmlText(r.Ggnr),
		Publisher:       r.Fbr,
		PublishTime:     r.Fbsj.Time,
		HasRead:         r.Sfyd == "是",
		MarkedImportant: r.Sfqd == "1",
		URL:             base + "/f/wlxt/kcgg/wlkc_ggb/student/beforeViewXs?wlkcid=" + courseID + "&id=" + r.Ggid,
	}
	if name := firstNonEmpty(r.Fjmc, r.Fjbt); name != "" {
		n.Attachment = &model.Attachment{
			Name: name,
			Size: r.Fjdx,
			URL:  base + "/b/wlxt/kj/wlkc_kjxxb/student/downloadFile?sfgk=0&wjid=" + r.Wjid,
		}
	}
	return n
}

type fileRow struct {
	Wjid     string     `json:"wjid"`
	Bt       string     `json:"bt"`
	Ms       string     `json:"ms"`
	Wjdx     int64      `json:"wjdx"`
	FileSize string     `json:"fileSize"`
	Scsj     flexTime   `json:"scsj"`
	Wjlx     string     `json:"wjlx"`
	IsNew    bool       `json:"isNew"`
	Sfqd     flexString `json:"sfqd"`
	Llcs     flexString `json:"llcs"`
	Xzcs     flexString `json:"xzcs"`
}

func (r fileRow) toModel(courseID, base string) model.File {
	return model.File{
		ID:              r.Wjid,
		CourseID:        courseID,
		Title:           htmlText(r.Bt),
		Description:     htmlText(r.Ms),
		RawSize:         r.Wjdx,
		Size:            r.FileSize,
		UploadTime:      r.Scsj.Time,
		FileType:        r.Wjlx,
		IsNew:           r.IsNew,
		MarkedImportant: r.Sfqd.int() == 1,
		VisitCount:      r.Llcs.int(),
		DownloadCount:   r.Xzcs.int(),
		DownloadURL:     base + "/b/wlxt/kj/wlkc_kjxxb/student/downloadFile?sfgk=0&wjid=" + r.Wjid,
		PreviewURL:      base + "/f/wlxt/kc/wj_wjb/student/beforePlayFile?wjid=" + r.Wjid,
	}
}

type homeworkRow struct {
	Zyid   string     `json:"zyid"`
	Xszyid string     `json:"xszyid"`
	Bt     string     `json:"bt"`
	Zynr   string     `json:"zynr"`
	Jzsj   flexTime   `json:"jzsj"`
	Bjzsj  flexTime   `json:"bjzsj"`
	Scsj   flexTime   `json:"scsj"`
	Xsnr   string     `json:"xsnr"`
	Cj     flexString `json:"cj"`
	Pyjb   string     `json:"pyjbm"`
	Pynr   string     `json:"pynr"`
	Pysj   flexTime   `json:"pysj"`
	Fjmc   string     `json:"zyfjmc"`
	Tjfjmc string     `json:"tjfjmc"`
}

func (r homeworkRow) toModel(courseID string, submitted, graded bool, base string) model.Assignment {
	a := model.Assignment{
		ID:                     r.Zyid,
		StudentHomeworkID:      r.Xszyid,
		CourseID:               courseID,
		Title:                  htmlText(r.Bt),
		Description:            htmlText(r.Zynr),
		Deadline:               r.Jzsj.Time,
		LateSubmissionDeadline: r.Bjzsj.ptr(),
		URL:                    base + "/f/wlxt/kczy/zy/student/viewCj?wlkcid=" + courseID + "&zyid=" + r.Zyid + "&xszyid=" + r.Xszyid,
		Submitted:              submitted,
		Graded:                 graded,
	}
	if r.Fjmc != "" {
		a.Attachment = &model.Attachment{Name: r.Fjmc}
	}
	if submitted {
		a.SubmitTime = r.Scsj.ptr()
		a.SubmittedContent = htmlText(r.Xsnr)
		if r.Tjfjmc != "" {
			a.SubmittedAttachment = &model.Attachment{Name: r.Tjfjmc}
		}
	}
	if graded {
		if g, err := strconv.ParseFloat(strings.TrimSpace(string(r.Cj)), 64); err == nil {
			a.Grade = &g
		}
		a.GradeLevel = r.Pyjb
		a.GradeContent = htmlText(r.Pynr)
		a.GradeTime = r.Pysj.ptr()
	}
	return a
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
