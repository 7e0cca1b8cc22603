// Package glossary loads the terminology table that constrains transcription
// and translation: an ordered mapping from a canonical source-language term
// to its required target-language translation, known alternatives, and a
// free-text note.
package glossary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Vetacher/zoom-translator/internal/logging"
)

// Entry describes the translation constraints for one source term.
type Entry struct {
	// Target is the canonical target-language rendering of the term.
	Target string `json:"target" yaml:"target"`
	// Alternatives are source-language variants that should map to Target.
	Alternatives []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	// Description is a free-text note for prompt context and maintenance.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Store is an immutable, ordered terminology table. The zero value is an
// empty store; every method works on it.
type Store struct {
	terms   []string
	entries map[string]Entry
}

// Option customizes loading.
type Option func(*loader)

type loader struct {
	logger *slog.Logger
}

// WithLogger attaches a logger for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Load reads a glossary file. The decoder is chosen by extension: .yaml and
// .yml use YAML, everything else JSON. Loading never fails: a missing,
// unreadable, or malformed file degrades to an empty glossary so
// transcription and translation keep working without terminology
// constraints. Problems are logged as warnings.
func Load(path string, opts ...Option) *Store {
	l := &loader{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	store := &Store{entries: map[string]Entry{}}
	path = strings.TrimSpace(path)
	if path == "" {
		return store
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// A glossary is optional; only an existing file that cannot be
		// read is worth a warning.
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("glossary unreadable, continuing without terminology",
				logging.String("path", path),
				logging.Error(err),
			)
		}
		return store
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = store.decodeYAML(data)
	default:
		err = store.decodeJSON(data)
	}
	if err != nil {
		l.logger.Warn("glossary malformed, continuing without terminology",
			logging.String("path", path),
			logging.Error(err),
		)
		return &Store{entries: map[string]Entry{}}
	}
	return store
}

// decodeJSON walks the top-level object with a token decoder so the file's
// key order survives; encoding/json maps would scramble it and the prompt
// fragment truncation is positional.
func (s *Store) decodeJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("top-level value must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("term %q: %w", key, err)
		}
		s.add(key, entry)
	}
	return nil
}

func (s *Store) decodeYAML(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return errors.New("top-level value must be a mapping")
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		var entry Entry
		if err := doc.Content[i+1].Decode(&entry); err != nil {
			return fmt.Errorf("term %q: %w", key, err)
		}
		s.add(key, entry)
	}
	return nil
}

func (s *Store) add(term string, entry Entry) {
	term = strings.TrimSpace(term)
	// Underscore-prefixed keys are comments in hand-maintained glossaries.
	if term == "" || strings.HasPrefix(term, "_") {
		return
	}
	if _, seen := s.entries[term]; seen {
		return
	}
	s.terms = append(s.terms, term)
	s.entries[term] = entry
}

// Len reports the number of loaded terms.
func (s *Store) Len() int {
	return len(s.terms)
}

// Terms returns the source terms in file order.
func (s *Store) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Lookup returns the entry for a source term.
func (s *Store) Lookup(term string) (Entry, bool) {
	entry, ok := s.entries[term]
	return entry, ok
}

// PhraseHints flattens source terms, their target renderings, and
// alternatives into a deduplicated hint list for the speech recognizer,
// capped at limit because the recognizer rejects oversized phrase lists.
// At most three alternatives per term are included.
func (s *Store) PhraseHints(limit int) []string {
	if limit <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(s.terms)*2)
	hints := make([]string, 0, len(s.terms)*2)
	push := func(phrase string) bool {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			return len(hints) < limit
		}
		if _, dup := seen[phrase]; dup {
			return len(hints) < limit
		}
		seen[phrase] = struct{}{}
		hints = append(hints, phrase)
		return len(hints) < limit
	}
	for _, term := range s.terms {
		entry := s.entries[term]
		if !push(term) {
			return hints
		}
		if !push(entry.Target) {
			return hints
		}
		alts := entry.Alternatives
		if len(alts) > 3 {
			alts = alts[:3]
		}
		for _, alt := range alts {
			if !push(alt) {
				return hints
			}
		}
	}
	return hints
}

// PromptFragment formats up to limit terms as "source → target" lines for
// inclusion in a translation instruction. Truncation is positional, in file
// order, so early terms are privileged regardless of a segment's content.
func (s *Store) PromptFragment(limit int) string {
	if limit <= 0 || len(s.terms) == 0 {
		return ""
	}
	var b strings.Builder
	count := 0
	for _, term := range s.terms {
		entry := s.entries[term]
		target := strings.TrimSpace(entry.Target)
		if target == "" {
			continue
		}
		variants := append([]string{term}, entry.Alternatives...)
		if len(variants) > 5 {
			variants = variants[:5]
		}
		b.WriteString("  • ")
		b.WriteString(strings.Join(variants, " / "))
		b.WriteString(" → ")
		b.WriteString(target)
		b.WriteByte('\n')
		count++
		if count >= limit {
			break
		}
	}
	if count == 0 {
		return ""
	}
	return "\nIMPORTANT TERMINOLOGY (use these exact translations):\n" + b.String()
}
