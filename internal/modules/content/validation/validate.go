package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

const (
	RuleContentLength   = "content_length"
	RuleBrandMention    = "brand_mention"
	RuleRequiredSection = "required_section"
	RuleObjectives      = "objectives"
	RuleQuizQuestions   = "quiz_questions"
)

// DefaultBrandDenylist holds agency and manufacturer names lesson text must
// not carry, matched in any case.
var DefaultBrandDenylist = []string{
	"PADI", "SSI", "NAUI", "SDI", "TDI", "CMAS", "BSAC", "GUE",
	"Scubapro", "Aqualung", "Suunto", "Cressi",
}

// DefaultExactBrandDenylist holds brand names that are also ordinary words.
// They match only with this exact capitalization.
var DefaultExactBrandDenylist = []string{"RAID", "Mares", "Shearwater"}

var DefaultRequiredSections = []string{
	"Overview",
	"Key Concepts",
	"Safety Considerations",
	"Summary",
}

type Question struct {
	Prompt        string
	Options       []string
	CorrectAnswer string
}

type Payload struct {
	Title      string
	Content    string
	Objectives []string
	Questions  []Question
}

type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Report struct {
	Passed          bool    `json:"passed"`
	Issues          []Issue `json:"issues"`
	ComplianceScore int     `json:"compliance_score"`
	CriticalCount   int     `json:"critical_count"`
	WarningCount    int     `json:"warning_count"`
}

// Notes flattens the report issues to "severity: message" lines.
func (r Report) Notes() []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, string(i.Severity)+": "+i.Message)
	}
	return out
}

type Rules struct {
	MinContentChars    int
	MinObjectives      int
	BrandDenylist      []string
	ExactBrandDenylist []string
	RequiredSections   []string

	brandRE      *regexp.Regexp
	exactBrandRE *regexp.Regexp
}

func DefaultRules() Rules {
	return NewRules(1200, 3, DefaultBrandDenylist, DefaultRequiredSections).
		WithExactBrands(DefaultExactBrandDenylist)
}

func NewRules(minContentChars, minObjectives int, denylist, sections []string) Rules {
	r := Rules{
		MinContentChars:  minContentChars,
		MinObjectives:    minObjectives,
		BrandDenylist:    denylist,
		RequiredSections: sections,
	}
	r.brandRE = wordPattern(denylist, "(?i)")
	return r
}

// WithExactBrands adds case-sensitive denylist entries.
func (r Rules) WithExactBrands(brands []string) Rules {
	r.ExactBrandDenylist = brands
	r.exactBrandRE = wordPattern(brands, "")
	return r
}

func wordPattern(words []string, flags string) *regexp.Regexp {
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			terms = append(terms, regexp.QuoteMeta(w))
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return regexp.MustCompile(flags + `\b(?:` + strings.Join(terms, "|") + `)\b`)
}

// Validate applies DefaultRules.
func Validate(p Payload) Report {
	return DefaultRules().Validate(p)
}

// Validate runs every rule independently and scores the result. Warnings never
// fail a payload.
func (r Rules) Validate(p Payload) Report {
	var issues []Issue
	add := func(rule string, sev Severity, format string, args ...any) {
		issues = append(issues, Issue{Rule: rule, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(p.Content)); n < r.MinContentChars {
		add(RuleContentLength, SeverityCritical, "content has %d characters; at least %d required", n, r.MinContentChars)
	}

	if found := uniqueMatches(p.Content, r.brandRE, r.exactBrandRE); len(found) > 0 {
		add(RuleBrandMention, SeverityCritical, "content mentions brand names: %s", strings.Join(found, ", "))
	}

	lower := strings.ToLower(p.Content)
	for _, section := range r.RequiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			add(RuleRequiredSection, SeverityWarning, "missing section %q", section)
		}
	}

	objectives := 0
	for _, o := range p.Objectives {
		if strings.TrimSpace(o) != "" {
			objectives++
		}
	}
	if objectives < r.MinObjectives {
		add(RuleObjectives, SeverityCritical, "%d objectives; at least %d required", objectives, r.MinObjectives)
	}

	if len(p.Questions) == 0 {
		add(RuleQuizQuestions, SeverityCritical, "quiz has no questions")
	}

	rep := Report{Issues: issues}
	if rep.Issues == nil {
		rep.Issues = []Issue{}
	}
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			rep.CriticalCount++
		case SeverityWarning:
			rep.WarningCount++
		}
	}
	rep.ComplianceScore = max(0, 100-25*rep.CriticalCount-5*rep.WarningCount)
	rep.Passed = rep.CriticalCount == 0
	return rep
}

func uniqueMatches(s string, patterns ...*regexp.Regexp) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range patterns {
		if re == nil {
			continue
		}
		for _, m := range re.FindAllString(s, -1) {
			k := strings.ToUpper(m)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
	}
	return out
}
