package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind is the coarse category of a visitor message.
type Kind string

const (
	Chat    Kind = "chat"
	Verse   Kind = "verse"
	Contact Kind = "contact"
)

// Decision is the heuristic verdict for a message.
type Decision struct {
	Kind Kind
	Key  string
}

var verseKeywords = []string{"versiculo", "biblia", "palavra de deus"}

// aliases maps well-known contact keys to the words visitors use for them.
var aliases = map[string][]string{
	"whatsapp":    {"whatsapp", "whats", "zap", "wpp"},
	"instagram":   {"instagram", "insta"},
	"localizacao": {"localizacao", "endereco", "como chegar", "mapa"},
	"secretaria":  {"secretaria", "telefone da igreja"},
	"youtube":     {"youtube", "transmissao", "ao vivo"},
}

var linkWords = []string{"link", "contato", "manda", "envia", "passa", "qual o", "onde"}

// Analyze classifies message with keyword rules. keys lists the contact keys
// that currently exist; a contact is only reported when the message both names
// one of them and asks for a link.
func Analyze(message string, keys []string) Decision {
	normalized := Normalize(message)
	if normalized == "" {
		return Decision{Kind: Chat}
	}

	for _, word := range verseKeywords {
		if strings.Contains(normalized, word) {
			return Decision{Kind: Verse}
		}
	}

	if !containsAny(normalized, linkWords) {
		return Decision{Kind: Chat}
	}

	for _, key := range keys {
		words := aliases[key]
		if len(words) == 0 {
			words = []string{Normalize(key)}
		}
		if containsAny(normalized, words) {
			return Decision{Kind: Contact, Key: key}
		}
	}

	return Decision{Kind: Chat}
}

// IsVerseRequest reports whether message asks for a Bible verse.
func IsVerseRequest(message string) bool {
	return Analyze(message, nil).Kind == Verse
}

// Normalize lower-cases s and strips accents and surrounding punctuation so
// "Bíblia!" and "biblia" compare equal.
func Normalize(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))

	var builder strings.Builder
	builder.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		builder.WriteRune(r)
	}
	return strings.TrimFunc(builder.String(), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func containsAny(s string, words []string) bool {
	for _, word := range words {
		if word != "" && strings.Contains(s, word) {
			return true
		}
	}
	return false
}
