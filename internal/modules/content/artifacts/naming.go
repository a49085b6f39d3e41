package artifacts

import (
	"path"
	"regexp"
	"strings"
)

const (
	PodcastCategory = "podcasts"
	maxSlugLen      = 100
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases s, turns whitespace and underscores into hyphens, drops
// everything outside [a-z0-9-], collapses hyphen runs and caps the result at
// 100 characters. An empty result becomes "lesson".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '/':
			return '-'
		}
		return r
	}, s)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "lesson"
	}
	return s
}

// PodcastKey is podcasts/<slug(trackSlug-title)>.mp3.
func PodcastKey(trackSlug, title string) string {
	return path.Join(PodcastCategory, Slugify(trackSlug+"-"+title)+".mp3")
}

// DocumentKey is <slug(category)>/<slug(title)>.<format>.
func DocumentKey(category, title, format string) string {
	format = strings.Trim(strings.ToLower(strings.TrimSpace(format)), ".")
	if format == "" {
		format = "pdf"
	}
	return path.Join(Slugify(category), Slugify(title)+"."+format)
}
