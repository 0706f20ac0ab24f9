package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind names one of the three content types a course carries.
type Kind string

const (
	KindNotice     Kind = "notice"
	KindAssignment Kind = "assignment"
	KindFile       Kind = "file"
)

// Kinds lists every content kind in display order.
var Kinds = []Kind{KindNotice, KindAssignment, KindFile}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notice", "notices", "n":
		return KindNotice, nil
	case "assignment", "assignments", "homework", "a", "hw":
		return KindAssignment, nil
	case "file", "files", "f":
		return KindFile, nil
	default:
		return "", fmt.Errorf("unknown content kind: %q", s)
	}
}

type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credential) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// FingerprintFields are the anti-forgery values the identity provider attaches
// to a completed single-sign-on form.
type FingerprintFields struct {
	FingerPrint     string `json:"fingerPrint"`
	FingerGenPrint  string `json:"fingerGenPrint"`
	FingerGenPrint3 string `json:"fingerGenPrint3"`
}

func (f FingerprintFields) Complete() bool {
	return f.FingerPrint != "" && f.FingerGenPrint != "" && f.FingerGenPrint3 != ""
}

type UserInfo struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

type SemesterType string

const (
	SemesterFall    SemesterType = "fall"
	SemesterSpring  SemesterType = "spring"
	SemesterSummer  SemesterType = "summer"
	SemesterUnknown SemesterType = "unknown"
)

type Semester struct {
	ID        string       `json:"id"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	StartYear int          `json:"startYear"`
	EndYear   int          `json:"endYear"`
	Type      SemesterType `json:"type"`
}

type Course struct {
	SemesterID      string   `json:"semesterId"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	EnglishName     string   `json:"englishName"`
	TeacherName     string   `json:"teacherName"`
	TeacherNumber   string   `json:"teacherNumber"`
	CourseNumber    string   `json:"courseNumber"`
	CourseIndex     int      `json:"courseIndex"`
	TimeAndLocation []string `json:"timeAndLocation,omitempty"`
}

// CourseRef is the name/teacher pair stamped onto content items at fetch time.
type CourseRef struct {
	Name        string `json:"name"`
	TeacherName string `json:"teacherName"`
}

// CourseIndex builds the course id lookup used to stamp content.
func CourseIndex(courses []Course) map[string]CourseRef {
	out := make(map[string]CourseRef, len(courses))
	for _, c := range courses {
		out[c.ID] = CourseRef{Name: c.Name, TeacherName: c.TeacherName}
	}
	return out
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Size string `json:"size,omitempty"`
}

// Item is implemented by every content type.
type Item interface {
	ItemID() string
	ItemCourseID() string
}
