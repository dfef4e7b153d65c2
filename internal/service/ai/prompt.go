package ai

import (
	"fmt"
	"strings"

	"github.com/esperancapontalsul/hope/backend/internal/model/contact"
	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
)

const (
	knowledgeStart = "[INÍCIO DO BANCO DE CONHECIMENTO DA IGREJA]"
	knowledgeEnd   = "[FIM DO BANCO DE CONHECIMENTO DA IGREJA]"
)

// ChipMarkup renders the anchor the model must emit for a contact entry.
func ChipMarkup(entry contact.Entry) string {
	class := "chip"
	if style := strings.TrimSpace(entry.StyleClass); style != "" {
		class += " " + style
	}
	return fmt.Sprintf(`<a href="%s" class="%s" target="_blank">%s</a>`, entry.URL, class, entry.Text)
}

// BuildInstruction assembles the system instruction: persona and style rules
// first, then one chip directive per contact entry, then the knowledge text
// last so it is the most recent context the model reads.
//
// The result depends only on its arguments.
func BuildInstruction(p persona.Persona, knowledge string, contacts contact.Table) string {
	var builder strings.Builder

	builder.WriteString(strings.TrimSpace(p.Instruction))
	if len(p.Rules) > 0 {
		builder.WriteString("\n\nRegras de estilo:")
		for _, rule := range p.Rules {
			builder.WriteString("\n- ")
			builder.WriteString(rule)
		}
	}

	builder.WriteString("\n\nFormatação de links:")
	if len(contacts) == 0 {
		builder.WriteString("\n- Nenhum link de contato está disponível; responda apenas com texto.")
	} else {
		builder.WriteString("\nQuando o assunto pedir um contato, inclua o chip correspondente exatamente como abaixo, sem alterar o HTML:")
		for _, key := range contacts.Keys() {
			entry := contacts[key]
			builder.WriteString(fmt.Sprintf("\n- %s: %s", key, ChipMarkup(entry)))
		}
	}

	builder.WriteString("\n\n")
	builder.WriteString(knowledgeStart)
	builder.WriteString("\n")
	builder.WriteString(knowledge)
	builder.WriteString("\n")
	builder.WriteString(knowledgeEnd)

	return builder.String()
}
