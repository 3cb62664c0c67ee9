package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Section names a group of settings that change together.
type Section string

const (
	SectionProvider  Section = "llm_provider"
	SectionProviders Section = "providers"
	SectionInline    Section = "inline"
	SectionPrompts   Section = "prompts"
	SectionLogging   Section = "logging"
)

// ChangeFunc receives the new configuration after a section changed.
type ChangeFunc func(cfg Config)

// Store holds the live configuration. Readers get immutable snapshots;
// writers replace the whole value.
type Store struct {
	path    string
	current atomic.Pointer[Config]

	mu        sync.Mutex
	nextID    int
	listeners map[Section]map[int]ChangeFunc
}

// NewStore creates a store seeded with cfg. An empty path disables persistence.
func NewStore(path string, cfg Config) *Store {
	s := &Store{
		path:      path,
		listeners: make(map[Section]map[int]ChangeFunc),
	}
	snapshot := cfg.Clone()
	s.current.Store(&snapshot)
	return s
}

// Get returns a snapshot of the current configuration.
func (s *Store) Get() Config {
	return s.current.Load().Clone()
}

// Path returns the backing file path, if any.
func (s *Store) Path() string {
	return s.path
}

// OnChange registers fn for changes to section and returns a function that
// removes the registration.
func (s *Store) OnChange(section Section, fn ChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners[section] == nil {
		s.listeners[section] = make(map[int]ChangeFunc)
	}
	id := s.nextID
	s.nextID++
	s.listeners[section][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[section], id)
	}
}

// Update applies fn to a copy of the configuration, validates and persists
// the result, then notifies listeners of every changed section.
func (s *Store) Update(fn func(cfg *Config)) error {
	s.mu.Lock()
	prev := s.current.Load()
	next := prev.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.path != "" {
		if err := Save(s.path, next); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.current.Store(&next)
	callbacks := s.collect(changedSections(*prev, next))
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(next.Clone())
	}
	return nil
}

// Replace swaps in cfg wholesale, used after reloading from disk.
func (s *Store) Replace(cfg Config) error {
	return s.Update(func(c *Config) { *c = cfg.Clone() })
}

// Reload re-reads the backing file, applies env overrides and replaces the
// current configuration.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	cfg = ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	prev := s.current.Load()
	s.current.Store(&cfg)
	callbacks := s.collect(changedSections(*prev, cfg))
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg.Clone())
	}
	return nil
}

func (s *Store) collect(sections []Section) []ChangeFunc {
	var out []ChangeFunc
	for _, section := range sections {
		slog.Debug("config_section_changed", "section", string(section))
		for _, fn := range s.listeners[section] {
			out = append(out, fn)
		}
	}
	return out
}

func changedSections(prev, next Config) []Section {
	var out []Section
	if prev.LLMProvider != next.LLMProvider {
		out = append(out, SectionProvider)
	}
	if !reflect.DeepEqual(prev.Providers, next.Providers) {
		out = append(out, SectionProviders)
	}
	if !reflect.DeepEqual(prev.Inline, next.Inline) {
		out = append(out, SectionInline)
	}
	if !reflect.DeepEqual(prev.Prompts, next.Prompts) {
		out = append(out, SectionPrompts)
	}
	if prev.LogLevel != next.LogLevel || prev.LogFormat != next.LogFormat || prev.LogFile != next.LogFile {
		out = append(out, SectionLogging)
	}
	return out
}
