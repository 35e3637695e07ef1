package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tileworld.ai/internal/sim/catalogs"
	"tileworld.ai/internal/sim/skills"
)

var (
	_ catalogs.ItemStore     = (*Store)(nil)
	_ catalogs.ResourceStore = (*Store)(nil)
)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) ItemDefs(ctx context.Context) ([]catalogs.ItemDef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,stackable,stack_limit,splittable,consumable,equip_slot,meta_json FROM item_defs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query item_defs: %w", err)
	}
	defer rows.Close()
	var out []catalogs.ItemDef
	for rows.Next() {
		var (
			d                                 catalogs.ItemDef
			stackable, splittable, consumable int
			meta                              sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &stackable, &d.StackLimit, &splittable, &consumable, &d.EquipSlot, &meta); err != nil {
			return nil, err
		}
		d.Stackable = stackable != 0
		d.Splittable = splittable != 0
		d.Consumable = consumable != 0
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &d.Meta); err != nil {
				return nil, fmt.Errorf("item %s meta: %w", d.ID, err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpsertItemDef(ctx context.Context, def catalogs.ItemDef) error {
	if err := catalogs.ValidateItemDef(def); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertItem(ctx, tx, def); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertItem(ctx context.Context, tx *sql.Tx, d catalogs.ItemDef) error {
	var meta sql.NullString
	if len(d.Meta) > 0 {
		b, err := json.Marshal(d.Meta)
		if err != nil {
			return fmt.Errorf("item %s meta: %w", d.ID, err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO item_defs(id,name,stackable,stack_limit,splittable,consumable,equip_slot,meta_json) VALUES(?,?,?,?,?,?,?,?)`,
		d.ID, d.Name, boolInt(d.Stackable), d.StackLimit, boolInt(d.Splittable), boolInt(d.Consumable), d.EquipSlot, meta)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) ResourceDefs(ctx context.Context) ([]catalogs.ResourceDef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,type,skill,xp,ticks_min,ticks_max,respawn_ms,mesh,depleted_mesh,scale,collision FROM resource_defs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query resource_defs: %w", err)
	}
	defer rows.Close()
	var out []catalogs.ResourceDef
	for rows.Next() {
		var (
			d                     catalogs.ResourceDef
			typ, skill, collision string
		)
		if err := rows.Scan(&d.ID, &typ, &skill, &d.XP, &d.TicksMin, &d.TicksMax, &d.RespawnMs, &d.Mesh, &d.DepletedMesh, &d.Scale, &collision); err != nil {
			return nil, err
		}
		d.Type = catalogs.ResourceType(typ)
		d.Skill = skills.Skill(skill)
		d.Collision = catalogs.CollisionMode(collision)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ResourceRequirements(ctx context.Context) ([]catalogs.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT resource_id,skill,level FROM resource_requirements ORDER BY resource_id,skill`)
	if err != nil {
		return nil, fmt.Errorf("query resource_requirements: %w", err)
	}
	defer rows.Close()
	var out []catalogs.Requirement
	for rows.Next() {
		var (
			r     catalogs.Requirement
			skill string
		)
		if err := rows.Scan(&r.ResourceID, &skill, &r.Level); err != nil {
			return nil, err
		}
		r.Skill = skills.Skill(skill)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResourceLoot returns loot rows in insertion order per resource; weighted rolls
// depend on that order.
func (s *Store) ResourceLoot(ctx context.Context) ([]catalogs.LootRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT resource_id,item_id,min_qty,max_qty,weight FROM resource_loot ORDER BY resource_id,seq`)
	if err != nil {
		return nil, fmt.Errorf("query resource_loot: %w", err)
	}
	defer rows.Close()
	var out []catalogs.LootRow
	for rows.Next() {
		var l catalogs.LootRow
		if err := rows.Scan(&l.ResourceID, &l.ItemID, &l.Min, &l.Max, &l.Weight); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ResourceSpawns(ctx context.Context) ([]catalogs.Spawn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,resource_id,x,y FROM resource_spawns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query resource_spawns: %w", err)
	}
	defer rows.Close()
	var out []catalogs.Spawn
	for rows.Next() {
		var sp catalogs.Spawn
		if err := rows.Scan(&sp.ID, &sp.ResourceID, &sp.X, &sp.Y); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// UpsertResourceDef replaces a definition together with all of its requirement and loot rows.
func (s *Store) UpsertResourceDef(ctx context.Context, def catalogs.ResourceDef, reqs []catalogs.Requirement, loot []catalogs.LootRow) error {
	if err := catalogs.ValidateResourceDef(def, reqs, loot); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertResource(ctx, tx, def, reqs, loot); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertResource(ctx context.Context, tx *sql.Tx, d catalogs.ResourceDef, reqs []catalogs.Requirement, loot []catalogs.LootRow) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO resource_defs(id,type,skill,xp,ticks_min,ticks_max,respawn_ms,mesh,depleted_mesh,scale,collision) VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET type=excluded.type, skill=excluded.skill, xp=excluded.xp,
			ticks_min=excluded.ticks_min, ticks_max=excluded.ticks_max, respawn_ms=excluded.respawn_ms,
			mesh=excluded.mesh, depleted_mesh=excluded.depleted_mesh, scale=excluded.scale, collision=excluded.collision`,
		d.ID, string(d.Type), string(d.Skill), d.XP, d.TicksMin, d.TicksMax, d.RespawnMs, d.Mesh, d.DepletedMesh, d.Scale, string(d.Collision),
	); err != nil {
		return fmt.Errorf("upsert resource %s: %w", d.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_requirements WHERE resource_id=?`, d.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_loot WHERE resource_id=?`, d.ID); err != nil {
		return err
	}
	for _, r := range reqs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO resource_requirements(resource_id,skill,level) VALUES(?,?,?)`,
			d.ID, string(r.Skill), r.Level); err != nil {
			return fmt.Errorf("resource %s requirement: %w", d.ID, err)
		}
	}
	for i, l := range loot {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resource_loot(resource_id,seq,item_id,min_qty,max_qty,weight) VALUES(?,?,?,?,?,?)`,
			d.ID, i, l.ItemID, l.Min, l.Max, l.Weight); err != nil {
			return fmt.Errorf("resource %s loot: %w", d.ID, err)
		}
	}
	return nil
}

func (s *Store) UpsertSpawn(ctx context.Context, sp catalogs.Spawn) error {
	if sp.ID == "" || sp.ResourceID == "" {
		return fmt.Errorf("%w: spawn needs id and resource_id", catalogs.ErrInvalidDef)
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO resource_spawns(id,resource_id,x,y) VALUES(?,?,?,?)`,
		sp.ID, sp.ResourceID, sp.X, sp.Y)
	return err
}

func (s *Store) DeleteSpawn(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resource_spawns WHERE id=?`, id)
	return err
}

// Empty reports whether no catalog rows have been stored yet.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM item_defs) + (SELECT COUNT(*) FROM resource_defs)`).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// ImportSeed writes every seed row in a single transaction and records the seed digest.
// Either the whole seed lands or nothing does.
func (s *Store) ImportSeed(ctx context.Context, seed *catalogs.Seed) error {
	if seed == nil {
		return fmt.Errorf("nil seed")
	}
	if err := seed.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range seed.Items {
		if err := upsertItem(ctx, tx, it); err != nil {
			return err
		}
	}
	for _, r := range seed.Resources {
		if err := upsertResource(ctx, tx, r.ResourceDef, r.Requirements, r.Loot); err != nil {
			return err
		}
	}
	for _, sp := range seed.Spawns {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO resource_spawns(id,resource_id,x,y) VALUES(?,?,?,?)`,
			sp.ID, sp.ResourceID, sp.X, sp.Y); err != nil {
			return fmt.Errorf("spawn %s: %w", sp.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('seed_digest',?)`, seed.Digest()); err != nil {
		return err
	}
	return tx.Commit()
}
