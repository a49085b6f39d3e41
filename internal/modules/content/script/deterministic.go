package script

import (
	"fmt"
	"strings"

	"github.com/yungbote/diveops-backend/internal/modules/content/chunker"
)

const (
	introTemplate      = "Welcome to this audio lesson on %s. Settle in and take a slow breath. We will work through the material together, one idea at a time."
	objectivesTemplate = "In this lesson you will learn to %s."
	headingTemplate    = "Next, let's talk about %s."
	conclusionTemplate = "That brings us to the end of this lesson on %s. Take a moment to review the key points before your next dive. Thanks for listening."
	defaultTitle       = "this topic"
)

var listTemplates = []string{
	"Here is a key point: %s.",
	"Remember this as well: %s.",
	"Another thing to keep in mind: %s.",
	"Make a mental note of this: %s.",
}

var transitions = []string{
	"Let's build on that.",
	"Now, let's keep going.",
	"Here is the next idea to think about.",
	"Take a second with that before we move on.",
	"With that in mind, let's continue.",
	"This connects directly to what comes next.",
	"Picture yourself in the water as you listen to this next part.",
	"Let's look at this from a slightly different angle.",
	"Keep that thought close as we move forward.",
	"Here is where it all starts to come together.",
	"Let's slow down and walk through the next part carefully.",
	"This is worth repeating on every dive you plan.",
}

type blockKind int

const (
	blockProse blockKind = iota
	blockHeading
	blockList
)

type block struct {
	kind blockKind
	text string
}

// Deterministic renders a narration script from src without any model call.
// Identical input always yields identical output.
func Deterministic(src Source) string {
	title := trimTerminal(StripInline(src.Title))
	if title == "" {
		title = defaultTitle
	}

	parts := []string{fmt.Sprintf(introTemplate, title)}
	if objs := cleanObjectives(src.Objectives); len(objs) > 0 {
		parts = append(parts, fmt.Sprintf(objectivesTemplate, strings.Join(objs, "; ")))
	}
	words := 0
	for _, p := range parts {
		words += chunker.WordCount(p)
	}

	blocks := parseBlocks(src.Content)
	next := 0
	for i, b := range blocks {
		if i > 0 && blocks[i-1].kind != blockHeading && words < TargetMinWords && next < len(transitions) {
			parts = append(parts, transitions[next])
			words += chunker.WordCount(transitions[next])
			next++
		}
		parts = append(parts, b.text)
		words += chunker.WordCount(b.text)
	}

	parts = append(parts, fmt.Sprintf(conclusionTemplate, title))
	return strings.Join(parts, "\n\n")
}

func cleanObjectives(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if t := trimTerminal(StripInline(o)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseBlocks(content string) []block {
	var (
		out   []block
		prose []string
		items int
	)
	flush := func() {
		if len(prose) > 0 {
			out = append(out, block{kind: blockProse, text: terminate(strings.Join(prose, " "))})
			prose = nil
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
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
			flush()
			if h := trimTerminal(StripInline(m[1])); h != "" {
				out = append(out, block{kind: blockHeading, text: fmt.Sprintf(headingTemplate, h)})
			}
			continue
		}
		if m := reBullet.FindStringSubmatch(line); m != nil {
			flush()
			if item := trimTerminal(StripInline(m[1])); item != "" {
				out = append(out, block{kind: blockList, text: fmt.Sprintf(listTemplates[items%len(listTemplates)], item)})
				items++
			}
			continue
		}
		if t := StripInline(line); t != "" {
			prose = append(prose, t)
		}
	}
	flush()
	return out
}
