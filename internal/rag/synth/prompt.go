package synth

import (
	"fmt"

	"github.com/nkapre/docqa/internal/config"
)

// BuildPrompt pairs the retrieved context with the question. The strict
// grounding rules (refusal sentence, [Document Name] citations, **term**
// emphasis) ride along as system instructions, see config.SystemPrompt.
func BuildPrompt(contextText string, question string) string {
	return fmt.Sprintf("CONTEXT PROVIDED:\n%s\n\nUSER QUESTION:\n%s", contextText, question)
}

func SystemInstructions() string {
	return config.SystemPrompt
}
