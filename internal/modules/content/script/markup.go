package script

import (
	"regexp"
	"strings"
)

var (
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHTMLTag    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	reEmphasis   = regexp.MustCompile("[*_`~]+")
	reHeading    = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	reBullet     = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+(.*)$`)
	reBlockquote = regexp.MustCompile(`^>\s?`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// StripInline removes inline markdown and HTML, keeping the visible text.
func StripInline(s string) string {
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reHTMLTag.ReplaceAllString(s, "")
	s = reEmphasis.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripMarkup flattens a markdown document to plain prose paragraphs.
func StripMarkup(s string) string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") || isRule(line) {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		line = reBlockquote.ReplaceAllString(line, "")
		if m := reHeading.FindStringSubmatch(line); m != nil {
			line = m[1]
		} else if m := reBullet.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		if t := StripInline(line); t != "" {
			cur = append(cur, t)
		}
	}
	flush()
	return strings.Join(paras, "\n\n")
}

func isRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	return strings.Trim(line, "-") == "" || strings.Trim(line, "*") == "" || strings.Trim(line, "_") == ""
}

// terminate makes s end with sentence punctuation.
func terminate(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ",;:")
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

func trimTerminal(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".!?,;:")
}
