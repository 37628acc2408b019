package class

import (
	"regexp"
	"strings"
)

var (
	videoIDRegex = regexp.MustCompile(`^[\w-]+$`)

	// marker -> characters ending the id
	videoLinkMarkers = []struct {
		marker string
		cutset string
	}{
		{"youtu.be/", "?&#/"},
		{"watch?v=", "&#"},
		{"embed/", "?&#/"},
		{"shorts/", "?&#/"},
	}
)

// ExtractVideoID returns the YouTube video id of link, or "" when link is not a YouTube video link.
// Accepted forms: youtu.be/<id>, watch?v=<id>, embed/<id>, shorts/<id> or a bare 11 character id.
func ExtractVideoID(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	for _, m := range videoLinkMarkers {
		if i := strings.Index(link, m.marker); i >= 0 {
			id := link[i+len(m.marker):]
			if j := strings.IndexAny(id, m.cutset); j >= 0 {
				id = id[:j]
			}
			if !videoIDRegex.MatchString(id) {
				return ""
			}
			return id
		}
	}

	if len(link) == 11 && videoIDRegex.MatchString(link) {
		return link
	}
	return ""
}

// EmbedURL is the player URL of a video id.
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}
