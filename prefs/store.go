// ABOUTME: Saved default filters per collection, kept in charm KV
// ABOUTME: Serves as the loader's preset source for first visits
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

const keyPrefix = "filters/"

func presetKey(kind models.Kind) []byte {
	return []byte(keyPrefix + string(kind))
}

// Store reads and writes presets. It satisfies engine.PresetSource.
type Store struct {
	client *Client
}

func NewStore(c *Client) *Store {
	return &Store{client: c}
}

// Preset returns the saved preset for kind. Missing or unreadable entries
// report false.
func (s *Store) Preset(kind models.Kind) (engine.Preset, bool) {
	p, err := s.Load(kind)
	if err != nil || p == nil {
		return engine.Preset{}, false
	}
	return *p, true
}

// Load returns the saved preset for kind, or nil when none is saved.
func (s *Store) Load(kind models.Kind) (*engine.Preset, error) {
	raw, err := s.client.Get(presetKey(kind))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset for %s: %w", kind.Collection(), err)
	}

	var p engine.Preset
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode preset for %s: %w", kind.Collection(), err)
	}
	return &p, nil
}

// Save stores the filters and search of spec as the default for its kind.
// Sentinel and undeclared filters are dropped first.
func (s *Store) Save(spec models.QuerySpec) (engine.Preset, error) {
	clean := engine.BuildQuery(spec.Kind, 1, 0, spec.Filters, spec.Search)
	p := engine.Preset{Filters: clean.Filters, Search: clean.Search}
	if len(p.Filters) == 0 {
		p.Filters = nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return p, err
	}
	if err := s.client.Set(presetKey(spec.Kind), raw); err != nil {
		return p, fmt.Errorf("failed to save preset for %s: %w", spec.Kind.Collection(), err)
	}
	return p, nil
}

// Clear removes the preset for kind.
func (s *Store) Clear(kind models.Kind) error {
	if err := s.client.Delete(presetKey(kind)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// All returns every saved preset.
func (s *Store) All() (map[models.Kind]engine.Preset, error) {
	keys, err := s.client.KeysWithPrefix([]byte(keyPrefix))
	if err != nil {
		return nil, err
	}

	out := make(map[models.Kind]engine.Preset, len(keys))
	for _, k := range keys {
		kind := models.Kind(strings.TrimPrefix(string(k), keyPrefix))
		if !kind.Valid() {
			continue
		}
		p, err := s.Load(kind)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out[kind] = *p
		}
	}
	return out, nil
}
