// Package knowledge owns the grounding content: the church knowledge text,
// the contact-link table and the verse list.
package knowledge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/esperancapontalsul/hope/backend/internal/model/contact"
)

// FallbackKnowledge is served when the knowledge file cannot be read.
const FallbackKnowledge = "Nenhuma informação adicional sobre a igreja está disponível no momento. Oriente o visitante a procurar a secretaria."

// FileStore reads and writes the grounding files.
type FileStore struct {
	KnowledgePath string
	ContactsPath  string
	VersesPath    string

	logger logrus.FieldLogger
}

// NewFileStore creates a store over the given paths. Empty paths disable the
// matching content.
func NewFileStore(knowledgePath, contactsPath, versesPath string, logger logrus.FieldLogger) *FileStore {
	return &FileStore{
		KnowledgePath: knowledgePath,
		ContactsPath:  contactsPath,
		VersesPath:    versesPath,
		logger:        logger.WithField("component", "knowledge"),
	}
}

// ErrNoKnowledgePath is returned by LoadKnowledge when no file is configured.
var ErrNoKnowledgePath = errors.New("knowledge file path is not configured")

// LoadKnowledge reads the knowledge file and reports read failures.
func (s *FileStore) LoadKnowledge() (string, error) {
	if s.KnowledgePath == "" {
		return "", ErrNoKnowledgePath
	}

	data, err := os.ReadFile(s.KnowledgePath)
	if err != nil {
		log := s.logger.WithField("path", s.KnowledgePath).WithError(err)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("knowledge file not found")
		} else {
			log.Error("failed to read knowledge file")
		}
		return "", err
	}
	return string(data), nil
}

// Load returns the knowledge text, or FallbackKnowledge when the file is
// missing or unreadable.
func (s *FileStore) Load() string {
	text, err := s.LoadKnowledge()
	if err != nil {
		return FallbackKnowledge
	}
	return text
}

// Save replaces the knowledge file with content. The write goes through a
// temporary file so readers never see a half-written file.
func (s *FileStore) Save(content string) error {
	if s.KnowledgePath == "" {
		return ErrNoKnowledgePath
	}

	if err := writeFileAtomic(s.KnowledgePath, []byte(content)); err != nil {
		s.logger.WithField("path", s.KnowledgePath).WithError(err).Error("failed to save knowledge file")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"path":  s.KnowledgePath,
		"bytes": len(content),
	}).Info("knowledge file saved")
	return nil
}

// LoadContacts parses the contact table. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON. Failures yield an empty table.
func (s *FileStore) LoadContacts() contact.Table {
	if s.ContactsPath == "" {
		return contact.Table{}
	}

	log := s.logger.WithField("path", s.ContactsPath)
	data, err := os.ReadFile(s.ContactsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("contacts file not found, link chips disabled")
		} else {
			log.WithError(err).Error("failed to read contacts file, link chips disabled")
		}
		return contact.Table{}
	}

	table, err := parseContacts(data, filepath.Ext(s.ContactsPath))
	if err != nil {
		log.WithError(err).Error("failed to parse contacts file, link chips disabled")
		return contact.Table{}
	}
	return table
}

// LoadVerses returns one verse per non-empty line. A missing file yields an
// empty list.
func (s *FileStore) LoadVerses() []string {
	if s.VersesPath == "" {
		return nil
	}

	data, err := os.ReadFile(s.VersesPath)
	if err != nil {
		s.logger.WithField("path", s.VersesPath).WithError(err).Warn("verses file unavailable")
		return nil
	}

	var verses []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			verses = append(verses, line)
		}
	}
	return verses
}

// rawEntry accepts the field names used by older contact files.
type rawEntry struct {
	URL        string `json:"url" yaml:"url"`
	Text       string `json:"text" yaml:"text"`
	Texto      string `json:"texto" yaml:"texto"`
	StyleClass string `json:"style_class" yaml:"style_class"`
	Classe     string `json:"classe" yaml:"classe"`
	Icon       string `json:"icon" yaml:"icon"`
}

func parseContacts(data []byte, ext string) (contact.Table, error) {
	raw := map[string]rawEntry{}

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}

	table := make(contact.Table, len(raw))
	for key, entry := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || strings.TrimSpace(entry.URL) == "" {
			return nil, fmt.Errorf("contact %q has no url", key)
		}
		table[key] = contact.Entry{
			URL:        strings.TrimSpace(entry.URL),
			Text:       firstNonEmpty(entry.Text, entry.Texto, key),
			StyleClass: firstNonEmpty(entry.StyleClass, entry.Classe, entry.Icon),
		}
	}
	return table, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
