package model

import (
	"reflect"
	"testing"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "notices", want: KindNotice},
		{in: " Homework ", want: KindAssignment},
		{in: "f", want: KindFile},
		{in: "grades", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseKind(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCourseIndex(t *testing.T) {
	t.Parallel()

	idx := CourseIndex([]Course{
		{ID: "c1", Name: "Calculus", TeacherName: "Li"},
		{ID: "c2", Name: "Physics", TeacherName: "Wang"},
	})
	want := map[string]CourseRef{
		"c1": {Name: "Calculus", TeacherName: "Li"},
		"c2": {Name: "Physics", TeacherName: "Wang"},
	}
	if !reflect.DeepEqual(idx, want) {
		t.Fatalf("CourseIndex = %#v, want %#v", idx, want)
	}
}

func TestWithCourseCopies(t *testing.T) {
	t.Parallel()

	n := Notice{ID: "n1", CourseID: "c1"}
	stamped := n.WithCourse(CourseRef{Name: "Calculus", TeacherName: "Li"})
	if n.CourseName != "" {
		t.Fatalf("expected original notice untouched, got %q", n.CourseName)
	}
	if stamped.CourseName != "Calculus" || stamped.CourseTeacherName != "Li" {
		t.Fatalf("unexpected stamp: %#v", stamped)
	}
}

func TestFingerprintFieldsComplete(t *testing.T) {
	t.Parallel()

	if (FingerprintFields{FingerPrint: "a", FingerGenPrint: "b"}).Complete() {
		t.Fatalf("expected incomplete")
	}
	if !(FingerprintFields{FingerPrint: "a", FingerGenPrint: "b", FingerGenPrint3: "c"}).Complete() {
		t.Fatalf("expected complete")
	}
}
