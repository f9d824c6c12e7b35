package talent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractResumeLink(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want string
	}{
		{
			name: "anchor with url text",
			cell: `<a href="https://x/y">https://x/y</a>`,
			want: "https://x/y",
		},
		{
			name: "anchor with label text falls back to href",
			cell: `<a href="https://files.example.com/cv.pdf" target="_blank">View CV</a>`,
			want: "https://files.example.com/cv.pdf",
		},
		{
			name: "bare percent-encoded url",
			cell: "https%3A%2F%2Fx%2Fy",
			want: "https://x/y",
		},
		{
			name: "double encoded url inside a redirect",
			cell: "/redirect?target=https%253A%252F%252Fcdn.example.com%252Fa.pdf",
			want: "https://cdn.example.com/a.pdf",
		},
		{
			name: "raw url with trailing punctuation",
			cell: "see https://example.com/resume.pdf.",
			want: "https://example.com/resume.pdf",
		},
		{
			name: "html entity in href",
			cell: `<a href="https://example.com/get?id=1&amp;v=2">CV</a>`,
			want: "https://example.com/get?id=1&v=2",
		},
		{name: "empty", cell: "", want: ""},
		{name: "nan", cell: "NaN", want: ""},
		{name: "malformed html", cell: `<a href="oops`, want: ""},
		{name: "broken escape", cell: "%zz not a link", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, ExtractResumeLink(tt.cell))
			})
		})
	}
}
