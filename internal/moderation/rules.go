package moderation

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"postflow/internal/observability"

	"gopkg.in/yaml.v3"
)

// RuleSet parameterizes RuleClassifier. Zero values fall back to DefaultRuleSet.
type RuleSet struct {
	BannedWords []string `yaml:"banned_words"`
	// MaxCapsWords is the number of shouted words (all caps, longer than 2 letters) tolerated.
	MaxCapsWords int `yaml:"max_caps_words"`
	// CapsRatio is the tolerated share of shouted words once content has more than CapsRatioMinWords words.
	CapsRatio         float64 `yaml:"caps_ratio"`
	CapsRatioMinWords int     `yaml:"caps_ratio_min_words"`
	MaxExclamations   int     `yaml:"max_exclamations"`
	// MinShoutedTitle is the length above which an all-caps title is flagged.
	MinShoutedTitle int `yaml:"min_shouted_title"`
	PunctuationRun  int `yaml:"punctuation_run"`
}

// DefaultRuleSet returns the built-in moderation heuristics.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		BannedWords: []string{
			"profanity", "insult", "stupid", "idiot", "moron", "hate",
			"dumb", "damn", "hell", "jerk", "ass", "crap", "shit",
		},
		MaxCapsWords:      3,
		CapsRatio:         0.2,
		CapsRatioMinWords: 10,
		MaxExclamations:   5,
		MinShoutedTitle:   5,
		PunctuationRun:    3,
	}
}

// LoadRuleSet reads a YAML rule file. Keys missing from the file keep their defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	rs := DefaultRuleSet()
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read moderation rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parse moderation rules %s: %w", path, err)
	}
	return rs, nil
}

type bannedWord struct {
	word string
	re   *regexp.Regexp
}

// RuleClassifier is the in-process classifier. It is deterministic and never unavailable.
type RuleClassifier struct {
	rules       RuleSet
	bannedWords []bannedWord
	punctuation *regexp.Regexp
}

// NewRuleClassifier compiles rs.
func NewRuleClassifier(rs RuleSet) *RuleClassifier {
	def := DefaultRuleSet()
	if rs.MaxCapsWords <= 0 {
		rs.MaxCapsWords = def.MaxCapsWords
	}
	if rs.CapsRatio <= 0 {
		rs.CapsRatio = def.CapsRatio
	}
	if rs.CapsRatioMinWords <= 0 {
		rs.CapsRatioMinWords = def.CapsRatioMinWords
	}
	if rs.MaxExclamations <= 0 {
		rs.MaxExclamations = def.MaxExclamations
	}
	if rs.MinShoutedTitle <= 0 {
		rs.MinShoutedTitle = def.MinShoutedTitle
	}
	if rs.PunctuationRun <= 1 {
		rs.PunctuationRun = def.PunctuationRun
	}

	rc := &RuleClassifier{
		rules:       rs,
		punctuation: regexp.MustCompile(fmt.Sprintf(`\?{%d,}|!{%d,}`, rs.PunctuationRun, rs.PunctuationRun)),
	}
	for _, w := range rs.BannedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		rc.bannedWords = append(rc.bannedWords, bannedWord{
			word: w,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return rc
}

// Classify implements Classifier.
func (rc *RuleClassifier) Classify(ctx context.Context, title, content string) (Verdict, error) {
	defer observability.TrackClassifier("rules")()
	if err := ctx.Err(); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reasons []string

	if found := rc.bannedIn(content); len(found) > 0 {
		reasons = append(reasons, "Banned words detected: "+strings.Join(found, ", "))
	}

	words := strings.Fields(content)
	shouted := 0
	for _, w := range words {
		if isShouted(w) && len([]rune(w)) > 2 {
			shouted++
		}
	}
	if shouted > rc.rules.MaxCapsWords ||
		(len(words) > rc.rules.CapsRatioMinWords && float64(shouted)/float64(len(words)) > rc.rules.CapsRatio) {
		reasons = append(reasons, "Aggressive tone detected (excessive use of capital letters)")
	}

	if strings.Count(content, "!") > rc.rules.MaxExclamations {
		reasons = append(reasons, "Aggressive tone detected (excessive exclamation marks)")
	}

	if isShouted(title) && len([]rune(title)) > rc.rules.MinShoutedTitle {
		reasons = append(reasons, "Aggressive tone in title (all capital letters)")
	}

	if rc.punctuation.MatchString(content) {
		reasons = append(reasons, "Aggressive tone detected (excessive punctuation)")
	}

	v := approvedVerdict(reasons)
	outcome := "approved"
	if !v.Approved {
		outcome = "rejected"
	}
	observability.RecordClassifierOutcome("rules", outcome)
	return v, nil
}

func (rc *RuleClassifier) bannedIn(content string) []string {
	var found []string
	for _, bw := range rc.bannedWords {
		if bw.re.MatchString(content) {
			found = append(found, bw.word)
		}
	}
	return found
}

// isShouted reports whether s has at least one letter and no lowercase letters.
func isShouted(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
