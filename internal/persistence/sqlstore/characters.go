package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"tileworld.ai/internal/sim/inventory"
	"tileworld.ai/internal/sim/skills"
	"tileworld.ai/internal/sim/world"
)

// CharacterRow is the listing form of a stored character.
type CharacterRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	UpdatedAt string `json:"updated_at"`
}

func cloneRecord(rec world.CharacterRecord) world.CharacterRecord {
	rec.Skills = rec.Skills.Clone()
	rec.Inventory = rec.Inventory.Clone()
	return rec
}

// SaveCharacter queues rec for the writer goroutine and never blocks on the database.
// A later save of the same character replaces an unwritten earlier one.
func (s *Store) SaveCharacter(rec world.CharacterRecord) {
	if s == nil || rec.ID == "" {
		return
	}
	rec = cloneRecord(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}
	s.pending[rec.ID] = rec
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// LoadCharacter returns the newest record for id, including saves not yet written.
func (s *Store) LoadCharacter(ctx context.Context, id string) (world.CharacterRecord, bool, error) {
	s.mu.Lock()
	if rec, ok := s.pending[id]; ok {
		s.mu.Unlock()
		return cloneRecord(rec), true, nil
	}
	if rec, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		return cloneRecord(rec), true, nil
	}
	s.mu.Unlock()

	var rec world.CharacterRecord
	err := s.db.QueryRowContext(ctx, `SELECT id,name,x,y FROM characters WHERE id=?`, id).
		Scan(&rec.ID, &rec.Name, &rec.Pos.X, &rec.Pos.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return world.CharacterRecord{}, false, nil
	}
	if err != nil {
		return world.CharacterRecord{}, false, fmt.Errorf("load character %s: %w", id, err)
	}

	rec.Skills = skills.Set{}
	rows, err := s.db.QueryContext(ctx, `SELECT skill,xp FROM character_skills WHERE character_id=?`, id)
	if err != nil {
		return world.CharacterRecord{}, false, err
	}
	for rows.Next() {
		var (
			sk string
			xp int
		)
		if err := rows.Scan(&sk, &xp); err != nil {
			rows.Close()
			return world.CharacterRecord{}, false, err
		}
		rec.Skills[skills.Skill(sk)] = xp
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return world.CharacterRecord{}, false, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT slot,item_id,qty FROM character_inventory WHERE character_id=? ORDER BY slot`, id)
	if err != nil {
		return world.CharacterRecord{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			slot int
			sl   inventory.Slot
		)
		if err := rows.Scan(&slot, &sl.ItemID, &sl.Qty); err != nil {
			return world.CharacterRecord{}, false, err
		}
		if slot < 0 {
			continue
		}
		for len(rec.Inventory) <= slot {
			rec.Inventory = append(rec.Inventory, inventory.Slot{})
		}
		rec.Inventory[slot] = sl
	}
	return rec, true, rows.Err()
}

func (s *Store) writeCharacters(ctx context.Context, batch map[string]world.CharacterRecord) error {
	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		rec := batch[id]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO characters(id,name,x,y,updated_at) VALUES(?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, x=excluded.x, y=excluded.y, updated_at=excluded.updated_at`,
			rec.ID, rec.Name, rec.Pos.X, rec.Pos.Y, now); err != nil {
			return fmt.Errorf("character %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM character_skills WHERE character_id=?`, id); err != nil {
			return err
		}
		for _, sk := range rec.Skills.Sorted() {
			if _, err := tx.ExecContext(ctx, `INSERT INTO character_skills(character_id,skill,xp) VALUES(?,?,?)`,
				id, string(sk), rec.Skills[sk]); err != nil {
				return fmt.Errorf("character %s skill %s: %w", id, sk, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM character_inventory WHERE character_id=?`, id); err != nil {
			return err
		}
		for slot, sl := range rec.Inventory {
			if sl.Empty() {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO character_inventory(character_id,slot,item_id,qty) VALUES(?,?,?,?)`,
				id, slot, sl.ItemID, sl.Qty); err != nil {
				return fmt.Errorf("character %s slot %d: %w", id, slot, err)
			}
		}
	}
	return tx.Commit()
}

// ListCharacters returns stored characters ordered by id. Unwritten saves are not included.
func (s *Store) ListCharacters(ctx context.Context) ([]CharacterRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,x,y,updated_at FROM characters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CharacterRow
	for rows.Next() {
		var r CharacterRow
		if err := rows.Scan(&r.ID, &r.Name, &r.X, &r.Y, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
