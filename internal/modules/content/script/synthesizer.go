package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/diveops-backend/internal/modules/content/chunker"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

const (
	TargetMinWords = 3000
	TargetMaxWords = 4500
	// MinUsableWords is the floor below which a generated script is discarded.
	MinUsableWords = 500
)

type Mode string

const (
	ModeGenerative    Mode = "generative"
	ModeDeterministic Mode = "deterministic"
)

func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeDeterministic)) {
		return ModeDeterministic
	}
	return ModeGenerative
}

// Source is the lesson material a script is written from.
type Source struct {
	TrackTitle string
	Title      string
	Content    string
	Objectives []string
}

type Script struct {
	Text      string
	WordCount int
	Mode      Mode
	// FellBack is set when generative mode was requested but not used.
	FellBack bool
}

// TextGenerator is the LLM call the synthesizer delegates to.
type TextGenerator interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type Synthesizer struct {
	log *logger.Logger
	llm TextGenerator
}

// NewSynthesizer builds a synthesizer. llm may be nil, in which case every
// request is served deterministically.
func NewSynthesizer(log *logger.Logger, llm TextGenerator) *Synthesizer {
	return &Synthesizer{log: log.With("service", "ScriptSynthesizer"), llm: llm}
}

// Synthesize never fails: any generative problem falls back to the
// deterministic script.
func (s *Synthesizer) Synthesize(ctx context.Context, src Source, mode Mode) Script {
	if mode == ModeGenerative {
		if text, ok := s.generate(ctx, src); ok {
			out := Script{Text: text, WordCount: chunker.WordCount(text), Mode: ModeGenerative}
			s.log.Info("Script ready", "title", src.Title, "mode", out.Mode, "word_count", out.WordCount)
			return out
		}
	}

	text := Deterministic(src)
	out := Script{
		Text:      text,
		WordCount: chunker.WordCount(text),
		Mode:      ModeDeterministic,
		FellBack:  mode == ModeGenerative,
	}
	s.log.Info("Script ready", "title", src.Title, "mode", out.Mode, "fell_back", out.FellBack, "word_count", out.WordCount)
	return out
}

func (s *Synthesizer) generate(ctx context.Context, src Source) (string, bool) {
	if s.llm == nil {
		s.log.Warn("No text generator configured; using deterministic script", "title", src.Title)
		return "", false
	}
	raw, err := s.llm.GenerateText(ctx, systemPrompt, userPrompt(src))
	if err != nil {
		s.log.Warn("Generative script failed; using deterministic script", "title", src.Title, "error", err)
		return "", false
	}
	text := StripMarkup(raw)
	if n := chunker.WordCount(text); n < MinUsableWords {
		s.log.Warn("Generative script too short; using deterministic script", "title", src.Title, "word_count", n)
		return "", false
	}
	return text, true
}

var systemPrompt = strings.Join([]string{
	"You write narration scripts for audio lessons in a scuba diving training program.",
	fmt.Sprintf("Write between %d and %d words of spoken prose.", TargetMinWords, TargetMaxWords),
	"Cover every concept in the source material. Do not add facts that contradict it.",
	"Never mention brand, company, agency or product names.",
	"Output plain prose only: no headings, bullet points, markdown, stage directions or speaker labels.",
}, "\n")

func userPrompt(src Source) string {
	var b strings.Builder
	if src.TrackTitle != "" {
		fmt.Fprintf(&b, "Course: %s\n", src.TrackTitle)
	}
	fmt.Fprintf(&b, "Lesson: %s\n", src.Title)
	if objs := cleanObjectives(src.Objectives); len(objs) > 0 {
		b.WriteString("Objectives:\n")
		for _, o := range objs {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	b.WriteString("\nSource material:\n")
	b.WriteString(strings.TrimSpace(src.Content))
	return b.String()
}
