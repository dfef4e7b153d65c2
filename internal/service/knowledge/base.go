package knowledge

import (
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/model/contact"
	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
	"github.com/esperancapontalsul/hope/backend/internal/service/ai"
)

// EmptyVerses is returned by RandomVerse when no verse is loaded.
const EmptyVerses = "Desculpe, a lista de versículos está vazia."

// Store is the durable side of the grounding content.
type Store interface {
	LoadKnowledge() (string, error)
	Save(content string) error
	LoadContacts() contact.Table
	LoadVerses() []string
}

// Base holds the current grounding content for the whole process and the
// system instruction derived from it. Writers go through UpdateKnowledge or
// Reload; every change invalidates the cached instruction.
type Base struct {
	store   Store
	persona persona.Persona
	logger  logrus.FieldLogger

	mu          sync.RWMutex
	knowledge   string
	contacts    contact.Table
	verses      []string
	instruction string
	cached      bool
	loaded      bool
}

// NewBase loads the content from store.
func NewBase(store Store, p persona.Persona, logger logrus.FieldLogger) *Base {
	base := &Base{
		store:   store,
		persona: p,
		logger:  logger.WithField("component", "knowledge"),
	}
	base.Reload()
	return base
}

// Persona returns the persona the instruction is built for.
func (b *Base) Persona() persona.Persona {
	return b.persona
}

// Knowledge returns the in-memory knowledge text.
func (b *Base) Knowledge() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.knowledge
}

// Contacts returns a copy of the contact table.
func (b *Base) Contacts() contact.Table {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.contacts.Clone()
}

// Instruction returns the system instruction for the current content.
func (b *Base) Instruction() string {
	b.mu.RLock()
	if b.cached {
		instruction := b.instruction
		b.mu.RUnlock()
		return instruction
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.cached {
		b.instruction = ai.BuildInstruction(b.persona, b.knowledge, b.contacts)
		b.cached = true
	}
	return b.instruction
}

// UpdateKnowledge saves text and, once the save succeeded, serves it. On a
// failed save the previous text stays in memory and the error is returned.
func (b *Base) UpdateKnowledge(text string) error {
	if err := b.store.Save(text); err != nil {
		return err
	}

	contacts := b.store.LoadContacts()

	b.mu.Lock()
	b.knowledge = text
	b.contacts = contacts
	b.cached = false
	b.loaded = true
	b.mu.Unlock()

	b.logger.WithField("contacts", len(contacts)).Info("knowledge updated")
	return nil
}

// Reload re-reads every file. When the knowledge file cannot be read the
// text already in memory is kept; FallbackKnowledge is only served when
// nothing was ever loaded.
func (b *Base) Reload() {
	knowledge, err := b.store.LoadKnowledge()
	contacts := b.store.LoadContacts()
	verses := b.store.LoadVerses()

	b.mu.Lock()
	if err != nil {
		if b.loaded {
			knowledge = b.knowledge
			b.logger.WithError(err).Warn("knowledge reload failed, keeping the current text")
		} else {
			knowledge = FallbackKnowledge
		}
	} else {
		b.loaded = true
	}
	changed := knowledge != b.knowledge || !sameContacts(contacts, b.contacts)
	b.knowledge = knowledge
	b.contacts = contacts
	b.verses = verses
	if changed {
		b.cached = false
	}
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"knowledge_bytes": len(knowledge),
		"contacts":        len(contacts),
		"verses":          len(verses),
		"changed":         changed,
	}).Debug("knowledge reloaded")
}

// RandomVerse picks one of the loaded verses.
func (b *Base) RandomVerse() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.verses) == 0 {
		return EmptyVerses
	}
	return b.verses[rand.Intn(len(b.verses))]
}

func sameContacts(a, b contact.Table) bool {
	if len(a) != len(b) {
		return false
	}
	for key, entry := range a {
		other, ok := b[key]
		if !ok || other != entry {
			return false
		}
	}
	return true
}
