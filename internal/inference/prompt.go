package inference

import (
	"fmt"
	"strings"
)

const storyTemplate = "Tell me a beautiful story about %s. \n        Make it descriptive, engaging, and focus on the artistic and cultural significance.\n        Here's the story:"

// modelTurn marks the start of the model reply in chat-formatted output.
const modelTurn = "<start_of_turn>model"

var trailingMarkers = []string{"<end_of_turn>", "<eos>", "</s>"}

// FormatPrompt wraps the user prompt in the story template, keeping at most
// maxWords whitespace-separated words of the prompt (0 keeps all).
func FormatPrompt(prompt string, maxWords int) string {
	p := strings.TrimSpace(prompt)
	if maxWords > 0 {
		if words := strings.Fields(p); len(words) > maxWords {
			p = strings.Join(words[:maxWords], " ")
		}
	}
	return fmt.Sprintf(storyTemplate, p)
}

// CleanOutput strips the echoed prompt and chat-turn framing from decoded
// model text.
func CleanOutput(text, formatted string) string {
	out := text
	if formatted != "" {
		out = strings.ReplaceAll(out, formatted, "")
	}
	// Keep the first model turn only.
	if i := strings.Index(out, modelTurn); i >= 0 {
		out = out[i+len(modelTurn):]
		if j := strings.Index(out, modelTurn); j >= 0 {
			out = out[:j]
		}
	}
	out = strings.TrimSpace(out)
	for changed := true; changed; {
		changed = false
		for _, m := range trailingMarkers {
			if strings.HasSuffix(out, m) {
				out = strings.TrimSpace(strings.TrimSuffix(out, m))
				changed = true
			}
		}
	}
	return out
}
