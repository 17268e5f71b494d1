package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DexEntry is one species record from the local pokedex file
type DexEntry struct {
	ID   int `json:"id"`
	Name struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
	} `json:"name"`
}

// DexService resolves species references to names and back from a
// local pokedex JSON file. Lookups decorate card detail responses; a
// missing data file disables decoration rather than failing startup.
type DexService struct {
	mu      sync.RWMutex
	entries []DexEntry
	byName  map[string]*DexEntry
	byID    map[int]*DexEntry
}

// NewDexService loads pokedex.json from dataDir
func NewDexService(dataDir string) (*DexService, error) {
	svc := &DexService{
		byName: make(map[string]*DexEntry),
		byID:   make(map[int]*DexEntry),
	}

	path := filepath.Join(dataDir, "pokedex.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Dex service: no pokedex data at %s, name decoration disabled", path)
			return svc, nil
		}
		return nil, fmt.Errorf("read pokedex: %w", err)
	}

	if err := json.Unmarshal(raw, &svc.entries); err != nil {
		return nil, fmt.Errorf("parse pokedex: %w", err)
	}
	for i := range svc.entries {
		entry := &svc.entries[i]
		svc.byName[strings.ToUpper(entry.Name.English)] = entry
		svc.byID[entry.ID] = entry
	}

	log.Printf("Dex service: loaded %d species", len(svc.entries))
	return svc, nil
}

// FindByName resolves an English species name to its dex number
func (s *DexService) FindByName(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byName[strings.ToUpper(name)]
	if !ok {
		return 0, false
	}
	return entry.ID, true
}

// NameOf returns the upper-cased English name for a dex number, or ""
func (s *DexService) NameOf(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.byID[id]; ok {
		return strings.ToUpper(entry.Name.English)
	}
	return ""
}

// NamesOf maps a background-species list to names, skipping unknowns
func (s *DexService) NamesOf(ids []int) []string {
	var names []string
	for _, id := range ids {
		if name := s.NameOf(id); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Count returns the number of loaded species
func (s *DexService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
