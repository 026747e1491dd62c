package service

import (
	"fmt"
	"strings"

	"kbqa/internal/domain"
)

func personaHeader(p Persona) string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "You are %s", p.Name)
		if p.Tone != "" {
			fmt.Fprintf(&b, ", a %s assistant", p.Tone)
		}
		b.WriteString(".")
		if p.Language != "" {
			fmt.Fprintf(&b, " Reply in %s.", p.Language)
		}
		b.WriteString("\n")
	}
	if len(p.Guidelines) > 0 {
		b.WriteString("Guidelines:\n")
		for _, g := range p.Guidelines {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func intentPrompt(p Persona, m *domain.IntentMatch, question string) string {
	return fmt.Sprintf("%sBased on the intent %q (confidence: %.2f) and the following context:\n%s\n\nAnswer this question: %s",
		personaHeader(p), m.Name, m.Score, m.Answer, question)
}

func documentPrompt(p Persona, contexts []string, question string) string {
	return fmt.Sprintf("%sAnswer using this context:\n%s\n\nQuestion: %s\nAnswer clearly in 1-%d short sentences.",
		personaHeader(p), strings.Join(contexts, "\n---\n"), question, p.MaxSentences)
}
