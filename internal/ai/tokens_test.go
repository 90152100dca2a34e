package ai

import (
	"strings"
	"testing"
)

func TestEstimateTokensASCII(t *testing.T) {
	got := EstimateTokens(strings.Repeat("a", 100))
	if got != 25 {
		t.Fatalf("ascii estimate = %d, want 25", got)
	}
}

func TestEstimateTokensDenseScript(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"cyrillic", strings.Repeat("п", 100)},
		{"serbian latin", strings.Repeat("č", 100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateTokens(tc.text)
			if got != 40 {
				t.Fatalf("dense estimate = %d, want 40", got)
			}
		})
	}
}

func TestEstimateTokensDenseBeatsASCII(t *testing.T) {
	ascii := EstimateTokens(strings.Repeat("x", 200))
	dense := EstimateTokens(strings.Repeat("ž", 200))
	if dense <= ascii {
		t.Fatalf("dense script estimate %d should exceed ascii estimate %d for equal length", dense, ascii)
	}
}

func TestEstimateTokensNeverNegative(t *testing.T) {
	for _, text := range []string{"", "a", "žčć", "hello world", strings.Repeat("б", 3)} {
		if got := EstimateTokens(text); got < 0 {
			t.Fatalf("estimate for %q = %d, want >= 0", text, got)
		}
	}
}

func TestEstimateRequestTokens(t *testing.T) {
	est := EstimateRequestTokens(strings.Repeat("a", 400), strings.Repeat("b", 400), 0)
	if est.PromptTokens != 200 {
		t.Fatalf("prompt tokens = %d, want 200", est.PromptTokens)
	}
	if est.CompletionTokens != DefaultMaxCompletionTokens {
		t.Fatalf("completion tokens = %d, want default %d", est.CompletionTokens, DefaultMaxCompletionTokens)
	}
	if est.TotalTokens != est.PromptTokens+est.CompletionTokens {
		t.Fatalf("total = %d, want prompt+completion", est.TotalTokens)
	}
}

func TestEstimateRequestTokensCustomCompletion(t *testing.T) {
	est := EstimateRequestTokens("abcd", "", 100)
	if est.CompletionTokens != 100 {
		t.Fatalf("completion tokens = %d, want 100", est.CompletionTokens)
	}
	if est.TotalTokens != 101 {
		t.Fatalf("total = %d, want 101", est.TotalTokens)
	}
}
