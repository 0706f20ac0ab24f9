package model

import "time"

type Notice struct {
	ID                string      `json:"id"`
	CourseID          string      `json:"courseId"`
	CourseName        string      `json:"courseName"`
	CourseTeacherName string      `json:"courseTeacherName"`
	Title             string      `json:"title"`
	Content           string      `json:"content"`
	Publisher         string      `json:"publisher"`
	PublishTime       time.Time   `json:"publishTime"`
	HasRead           bool        `json:"hasRead"`
	MarkedImportant   bool        `json:"markedImportant"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	URL               string      `json:"url,omitempty"`
}

func (n Notice) ItemID() string       { return n.ID }
func (n Notice) ItemCourseID() string { return n.CourseID }
func (n Notice) SortTime() time.Time  { return n.PublishTime }
func (n Notice) Seen() bool           { return n.HasRead }

func (n Notice) WithCourse(ref CourseRef) Notice {
	n.CourseName = ref.Name
	n.CourseTeacherName = ref.TeacherName
	return n
}

type Assignment struct {
	ID                     string      `json:"id"`
	StudentHomeworkID      string      `json:"studentHomeworkId"`
	CourseID               string      `json:"courseId"`
	CourseName             string      `json:"courseName"`
	CourseTeacherName      string      `json:"courseTeacherName"`
	Title                  string      `json:"title"`
	Description            string      `json:"description"`
	Deadline               time.Time   `json:"deadline"`
	LateSubmissionDeadline *time.Time  `json:"lateSubmissionDeadline,omitempty"`
	Attachment             *Attachment `json:"attachment,omitempty"`
	URL                    string      `json:"url,omitempty"`

	Submitted           bool        `json:"submitted"`
	SubmitTime          *time.Time  `json:"submitTime,omitempty"`
	SubmittedContent    string      `json:"submittedContent,omitempty"`
	SubmittedAttachment *Attachment `json:"submittedAttachment,omitempty"`

	Graded       bool       `json:"graded"`
	Grade        *float64   `json:"grade,omitempty"`
	GradeLevel   string     `json:"gradeLevel,omitempty"`
	GradeContent string     `json:"gradeContent,omitempty"`
	GradeTime    *time.Time `json:"gradeTime,omitempty"`
}

func (a Assignment) ItemID() string       { return a.ID }
func (a Assignment) ItemCourseID() string { return a.CourseID }
func (a Assignment) SortTime() time.Time  { return a.Deadline }
func (a Assignment) IsSubmitted() bool    { return a.Submitted }

func (a Assignment) WithCourse(ref CourseRef) Assignment {
	a.CourseName = ref.Name
	a.CourseTeacherName = ref.TeacherName
	return a
}

type File struct {
	ID                string    `json:"id"`
	CourseID          string    `json:"courseId"`
	CourseName        string    `json:"courseName"`
	CourseTeacherName string    `json:"courseTeacherName"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	RawSize           int64     `json:"rawSize"`
	Size              string    `json:"size"`
	UploadTime        time.Time `json:"uploadTime"`
	FileType          string    `json:"fileType"`
	IsNew             bool      `json:"isNew"`
	MarkedImportant   bool      `json:"markedImportant"`
	VisitCount        int       `json:"visitCount"`
	DownloadCount     int       `json:"downloadCount"`
	DownloadURL       string    `json:"downloadUrl,omitempty"`
	PreviewURL        string    `json:"previewUrl,omitempty"`
}

func (f File) ItemID() string       { return f.ID }
func (f File) ItemCourseID() string { return f.CourseID }
func (f File) SortTime() time.Time  { return f.UploadTime }
func (f File) Seen() bool           { return !f.IsNew }

func (f File) WithCourse(ref CourseRef) File {
	f.CourseName = ref.Name
	f.CourseTeacherName = ref.TeacherName
	return f
}
