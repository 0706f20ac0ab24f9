package main

import (
	"reflect"
	"testing"
)

func TestRewriteSearchShortcutArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"learnsync"},
			want: []string{"learnsync"},
		},
		{
			name: "shortcut first token",
			in:   []string{"learnsync", "/midterm"},
			want: []string{"learnsync", "search", "midterm"},
		},
		{
			name: "shortcut after value flag",
			in:   []string{"learnsync", "--format", "text", "/midterm"},
			want: []string{"learnsync", "--format", "text", "search", "midterm"},
		},
		{
			name: "shortcut after equals flag",
			in:   []string{"learnsync", "--dir=./tmp", "/midterm"},
			want: []string{"learnsync", "--dir=./tmp", "search", "midterm"},
		},
		{
			name: "shortcut after bool flag keeps trailing args",
			in:   []string{"learnsync", "--pretty", "/lab", "--kind", "file"},
			want: []string{"learnsync", "--pretty", "search", "lab", "--kind", "file"},
		},
		{
			name: "lone slash not rewritten",
			in:   []string{"learnsync", "/"},
			want: []string{"learnsync", "/"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"learnsync", "notices", "show", "/n1"},
			want: []string{"learnsync", "notices", "show", "/n1"},
		},
		{
			name: "double dash stops rewriting",
			in:   []string{"learnsync", "--", "/midterm"},
			want: []string{"learnsync", "--", "/midterm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteSearchShortcutArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteSearchShortcutArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
