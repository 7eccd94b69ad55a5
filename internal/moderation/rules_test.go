package moderation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanContent = "This is a completely clean post with appropriate content and sufficient length to pass the minimum requirements."

func classify(t *testing.T, rc *RuleClassifier, title, content string) Verdict {
	t.Helper()
	v, err := rc.Classify(context.Background(), title, content)
	require.NoError(t, err)
	return v
}

func TestRuleClassifier_Default(t *testing.T) {
	rc := NewRuleClassifier(DefaultRuleSet())

	tests := []struct {
		name        string
		title       string
		content     string
		approved    bool
		wantReasons []string
	}{
		{
			name:     "clean content",
			title:    "A calm title",
			content:  cleanContent,
			approved: true,
		},
		{
			name:        "banned words are reported in list order",
			title:       "Opinion",
			content:     "That was a STUPID move by an idiot and I said so.",
			wantReasons: []string{"Banned words detected: stupid, idiot"},
		},
		{
			name:     "banned words inside longer words are ignored",
			title:    "Greetings",
			content:  "Hello class, please pass the assessment and shell scripts.",
			approved: true,
		},
		{
			name:    "shouting words",
			title:   "Notice",
			content: "THIS IS AN AGGRESSIVE POST THAT SHOULD BE FLAGGED FOR TONE.",
			wantReasons: []string{
				"Aggressive tone detected (excessive use of capital letters)",
			},
		},
		{
			name:    "shouting ratio over many words",
			title:   "Notice",
			content: "one two three four five six seven eight nine ten ELEVEN TWELVE THIRTEEN",
			wantReasons: []string{
				"Aggressive tone detected (excessive use of capital letters)",
			},
		},
		{
			name:    "exclamation marks",
			title:   "Wow",
			content: "Great! Fine! Good! Nice! Cool! Yes!",
			wantReasons: []string{
				"Aggressive tone detected (excessive exclamation marks)",
			},
		},
		{
			name:    "punctuation runs",
			title:   "Question",
			content: "Why would anyone do that???",
			wantReasons: []string{
				"Aggressive tone detected (excessive punctuation)",
			},
		},
		{
			name:    "shouted title",
			title:   "THIS IS AN ANGRY TITLE",
			content: cleanContent,
			wantReasons: []string{
				"Aggressive tone in title (all capital letters)",
			},
		},
		{
			name:     "short shouted title tolerated",
			title:    "NEWS",
			content:  cleanContent,
			approved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := classify(t, rc, tt.title, tt.content)
			assert.Equal(t, tt.approved, v.Approved)
			if tt.approved {
				assert.Empty(t, v.Reasons)
				assert.NotNil(t, v.Reasons)
			} else {
				assert.Equal(t, tt.wantReasons, v.Reasons)
			}
		})
	}
}

func TestRuleClassifier_MultipleIssuesInFixedOrder(t *testing.T) {
	rc := NewRuleClassifier(DefaultRuleSet())
	v := classify(t, rc, "TERRIBLE NEWS", "THIS IS TERRIBLE!!! profanity AND insult!!! REALLY BAD")

	assert.False(t, v.Approved)
	assert.Equal(t, []string{
		"Banned words detected: profanity, insult",
		"Aggressive tone detected (excessive use of capital letters)",
		"Aggressive tone detected (excessive exclamation marks)",
		"Aggressive tone in title (all capital letters)",
		"Aggressive tone detected (excessive punctuation)",
	}, v.Reasons)
}

func TestRuleClassifier_Deterministic(t *testing.T) {
	rc := NewRuleClassifier(DefaultRuleSet())
	content := "You absolute moron!!! " + strings.Repeat("word ", 20)
	a := classify(t, rc, "Title", content)
	b := classify(t, rc, "Title", content)
	assert.Equal(t, a, b)
}

func TestRuleClassifier_CanceledContext(t *testing.T) {
	rc := NewRuleClassifier(DefaultRuleSet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rc.Classify(ctx, "Title", cleanContent)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLoadRuleSet(t *testing.T) {
	rs, err := LoadRuleSet(filepath.Join("testdata", "rules.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "scam"}, rs.BannedWords)
	assert.Equal(t, 2, rs.MaxExclamations)
	assert.Equal(t, DefaultRuleSet().MaxCapsWords, rs.MaxCapsWords)

	rc := NewRuleClassifier(rs)
	v := classify(t, rc, "Offer", "This is not a SCAM, really! Trust me! Honestly!")
	assert.Equal(t, []string{
		"Banned words detected: scam",
		"Aggressive tone detected (excessive exclamation marks)",
	}, v.Reasons)

	// The default list no longer applies.
	v = classify(t, rc, "Opinion", "That was a stupid idea but we move on.")
	assert.True(t, v.Approved)
}

func TestLoadRuleSet_Errors(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join("testdata", "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, writeFile(bad, "banned_words: [unterminated"))
	_, err = LoadRuleSet(bad)
	assert.Error(t, err)
}
