package ai

import "strings"

// DefaultMaxCompletionTokens is the fixed completion allowance reserved on
// top of the prompt estimate when sizing a request.
const DefaultMaxCompletionTokens = 2500

const (
	asciiCharsPerToken = 4.0
	denseCharsPerToken = 2.5
)

// serbianDiacritics are the Latin letters that mark Serbian/Croatian text.
const serbianDiacritics = "čćžšđČĆŽŠĐ"

type RequestEstimate struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EstimateTokens converts character count into an approximate token count.
// Cyrillic and Serbian/Croatian diacritic text tokenizes denser than plain
// English, so it gets a lower chars-per-token divisor.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	divisor := asciiCharsPerToken
	if hasDenseScript(text) {
		divisor = denseCharsPerToken
	}
	n := int(float64(len([]rune(text))) / divisor)
	if n < 0 {
		return 0
	}
	return n
}

// EstimateRequestTokens sizes a full request: both prompt parts plus a fixed
// completion allowance. maxCompletion <= 0 falls back to the default.
func EstimateRequestTokens(systemPrompt, userPrompt string, maxCompletion int) RequestEstimate {
	if maxCompletion <= 0 {
		maxCompletion = DefaultMaxCompletionTokens
	}
	prompt := EstimateTokens(systemPrompt) + EstimateTokens(userPrompt)
	return RequestEstimate{
		PromptTokens:     prompt,
		CompletionTokens: maxCompletion,
		TotalTokens:      prompt + maxCompletion,
	}
}

func hasDenseScript(text string) bool {
	for _, r := range text {
		if r >= 0x0400 && r <= 0x04FF {
			return true
		}
		if strings.ContainsRune(serbianDiacritics, r) {
			return true
		}
	}
	return false
}
