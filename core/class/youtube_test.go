package class

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{link: "", want: ""},
		{link: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{link: "https://youtu.be/dQw4w9WgXcQ?t=42", want: "dQw4w9WgXcQ"},
		{link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&index=2", want: "dQw4w9WgXcQ"},
		{link: "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", want: "dQw4w9WgXcQ"},
		{link: "https://youtube.com/shorts/abcdefghijk?feature=share", want: "abcdefghijk"},
		{link: "  dQw4w9WgXcQ  ", want: "dQw4w9WgXcQ"},
		{link: "dQw4w9WgXc", want: ""},
		{link: "https://vimeo.com/123456", want: ""},
		{link: "https://youtu.be/", want: ""},
		{link: "abc/defghij", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoID(tt.link))
		})
	}
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", EmbedURL("dQw4w9WgXcQ"))
}
