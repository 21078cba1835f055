package taskmaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "unique in first occurrence order", text: "Hello [Name], welcome to [Project]! - [Name]", want: []string{"Name", "Project"}},
		{name: "none", text: "plain text", want: []string{}},
		{name: "names with spaces", text: "# [Project Name]\n[Target Users]", want: []string{"Project Name", "Target Users"}},
		{name: "empty brackets ignored", text: "[] and [[x]]", want: []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placeholders(tt.text))
		})
	}
}

func TestApplyPlaceholders(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		values map[string]string
		want   string
	}{
		{
			name:   "replaces every occurrence",
			text:   "Hello [Name], welcome to [Project]! - [Name]",
			values: map[string]string{"Name": "Ann", "Project": "Acme"},
			want:   "Hello Ann, welcome to Acme! - Ann",
		},
		{
			name:   "missing value becomes empty",
			text:   "[A]-[B]",
			values: map[string]string{"A": "x"},
			want:   "x-",
		},
		{
			name:   "values are literal",
			text:   "[A] [B]",
			values: map[string]string{"A": "$1 .* \\", "B": "[A]"},
			want:   "$1 .* \\ [A]",
		},
		{
			name:   "substituted values are not rescanned",
			text:   "[A]",
			values: map[string]string{"A": "[B]", "B": "no"},
			want:   "[B]",
		},
		{
			name: "no placeholders",
			text: "unchanged",
			want: "unchanged",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyPlaceholders(tt.text, tt.values))
		})
	}
}
