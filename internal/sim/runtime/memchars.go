package runtime

import (
	"context"
	"sync"

	"tileworld.ai/internal/sim/world"
)

// MemCharacters keeps character records in process memory. It serves runs without a
// database and tests; records are lost on exit.
type MemCharacters struct {
	mu   sync.Mutex
	recs map[string]world.CharacterRecord
}

func NewMemCharacters() *MemCharacters {
	return &MemCharacters{recs: map[string]world.CharacterRecord{}}
}

func (m *MemCharacters) LoadCharacter(ctx context.Context, id string) (world.CharacterRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return world.CharacterRecord{}, false, nil
	}
	rec.Skills = rec.Skills.Clone()
	rec.Inventory = rec.Inventory.Clone()
	return rec, true, nil
}

func (m *MemCharacters) SaveCharacter(rec world.CharacterRecord) {
	rec.Skills = rec.Skills.Clone()
	rec.Inventory = rec.Inventory.Clone()
	m.mu.Lock()
	m.recs[rec.ID] = rec
	m.mu.Unlock()
}
