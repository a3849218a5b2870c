package usecase

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvitationToken_Shape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		tok, err := NewInvitationToken()
		require.NoError(t, err)
		require.Len(t, tok, tokenLength)
		for _, r := range tok {
			require.True(t, strings.ContainsRune(tokenAlphabet, r), "unexpected rune %q", r)
		}
		require.False(t, seen[tok], "duplicate token")
		seen[tok] = true
	}
}

func TestNewToken_RejectsBiasedBytes(t *testing.T) {
	// 252 is the first byte above the largest multiple of 36 and must be skipped.
	src := bytes.Repeat([]byte{255, 252, 0, 37}, 32)
	tok, err := newToken(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 16), tok)
}

func TestNewToken_ShortReader(t *testing.T) {
	_, err := newToken(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`  {"a":1}  `))
}

func TestDecodeFeedback_Repairs(t *testing.T) {
	raw := "Here is the evaluation:\n{\"totalScore\": 50, \"strengths\": [\"a\",], \"finalAssessment\": \"ok\",}\nThanks!"
	out, err := DecodeFeedback(raw)
	require.NoError(t, err)
	require.NotNil(t, out.TotalScore)
	assert.Equal(t, 50.0, *out.TotalScore)
	assert.Equal(t, []string{"a"}, out.Strengths)
}

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "culturalrolefit", categoryKey("Cultural & Role Fit"))
	assert.Equal(t, "problemsolving", categoryKey("Problem-Solving"))
	assert.Equal(t, "problemsolving", categoryKey("problem solving"))
}

func TestErrorCodeFromJobError(t *testing.T) {
	cases := map[string]string{
		"op=feedback.generate: feedback parse error: invalid json": "FEEDBACK_PARSE_ERROR",
		"op=feedback.generate: schema invalid: x":                  "VALIDATION_ERROR",
		"op=feedback.complete: upstream timeout: deadline":        "UPSTREAM_TIMEOUT",
		"op=x: not found":                                          "NOT_FOUND",
		"boom":                                                     "INTERNAL",
	}
	for msg, want := range cases {
		assert.Equal(t, want, errorCodeFromJobError(msg), msg)
	}
}
