// Package knowledge implements KnowledgeBase + EntityMemory (spec §3) plus
// the supplemented context-accuracy tracker (see DESIGN.md Open Question 2).
package knowledge

import (
	"strings"
	"time"

	"github.com/abhishec/purple-agent/internal/caselog"
	"github.com/abhishec/purple-agent/internal/store"
)

// Fact is one cross-task knowledge fact.
type Fact struct {
	Domain         string    `json:"domain"`
	EntityKeywords []string  `json:"entity_keywords"`
	FactText       string    `json:"fact_text"`
	Quality        float64   `json:"quality"`
	Timestamp      time.Time `json:"timestamp"`
}

// KnowledgeBase is the persisted, append-only fact store.
type KnowledgeBase struct {
	file  *store.JSONFile
	Facts []Fact `json:"facts"`
}

// NewKnowledgeBase loads any previously persisted facts from path.
func NewKnowledgeBase(path string) (*KnowledgeBase, error) {
	file := store.NewJSONFile(path)
	kb := &KnowledgeBase{file: file}
	if err := file.Load(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// Record appends a fact and persists the knowledge base.
func (kb *KnowledgeBase) Record(domain, factText string, quality float64, sourceText string) error {
	kb.Facts = append(kb.Facts, Fact{
		Domain:         domain,
		EntityKeywords: caselog.Tokenize(sourceText),
		FactText:       factText,
		Quality:        quality,
		Timestamp:      time.Now(),
	})
	return kb.file.Save(kb)
}

// Retrieve returns facts matching domain whose entity keywords overlap
// taskText's keywords at all, highest quality first.
func (kb *KnowledgeBase) Retrieve(domain, taskText string, limit int) []Fact {
	keywords := caselog.Tokenize(taskText)
	keySet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keySet[k] = true
	}

	var matches []Fact
	for _, f := range kb.Facts {
		if domain != "" && f.Domain != domain {
			continue
		}
		overlap := false
		for _, k := range f.EntityKeywords {
			if keySet[k] {
				overlap = true
				break
			}
		}
		if overlap {
			matches = append(matches, f)
		}
	}

	// Simple insertion sort by descending quality; fact counts per domain
	// are small enough that this never needs to beat sort.Slice on cost.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Quality > matches[j-1].Quality; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// EntityType enumerates the entity shapes EntityMemory extracts by regex.
type EntityType string

const (
	EntityVendor  EntityType = "vendor"
	EntityPerson  EntityType = "person"
	EntityAmount  EntityType = "amount"
	EntityID      EntityType = "id"
	EntityDate    EntityType = "date"
	EntityProduct EntityType = "product"
)

// Record is the persisted per-entity state.
type Record struct {
	CanonicalName   string     `json:"canonical_name"`
	Type            EntityType `json:"type"`
	FirstSeen       time.Time  `json:"first_seen"`
	LastSeen        time.Time  `json:"last_seen"`
	SightingCount   int        `json:"sighting_count"`
	AssociatedFacts []string   `json:"associated_facts"`
}

// Memory is the persisted, canonical-name-keyed entity store.
type Memory struct {
	file    *store.JSONFile
	Records map[string]*Record `json:"records"`
}

// NewMemory loads any previously persisted entity records from path.
func NewMemory(path string) (*Memory, error) {
	file := store.NewJSONFile(path)
	m := &Memory{file: file, Records: make(map[string]*Record)}
	if err := file.Load(m); err != nil {
		return nil, err
	}
	if m.Records == nil {
		m.Records = make(map[string]*Record)
	}
	return m, nil
}

// Observe extracts entities from text and updates sighting counts, creating
// new records as needed, then persists the memory. A name matched by more
// than one pattern within the same call (e.g. a two-word vendor name that
// also looks like a person name) is only counted once, under whichever
// pattern ran first.
func (m *Memory) Observe(text string) error {
	seen := make(map[string]bool)
	for _, ext := range extractors {
		for _, name := range ext.pattern.FindAllString(text, -1) {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			m.touch(name, ext.entityType)
		}
	}
	return m.file.Save(m)
}

func (m *Memory) touch(name string, entityType EntityType) {
	if name == "" {
		return
	}
	now := time.Now()
	r, ok := m.Records[name]
	if !ok {
		r = &Record{CanonicalName: name, Type: entityType, FirstSeen: now}
		m.Records[name] = r
	}
	r.LastSeen = now
	r.SightingCount++
}

// AssociateFact attaches factText to an existing entity record, if present.
func (m *Memory) AssociateFact(name, factText string) {
	if r, ok := m.Records[name]; ok {
		r.AssociatedFacts = append(r.AssociatedFacts, factText)
	}
}

// Context returns the known entity records mentioned in text, for inclusion
// in the assembled system context.
func (m *Memory) Context(text string) []*Record {
	var hits []*Record
	lower := strings.ToLower(text)
	for name, r := range m.Records {
		if strings.Contains(lower, strings.ToLower(name)) {
			hits = append(hits, r)
		}
	}
	return hits
}
