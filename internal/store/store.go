// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store persists the saved desired state in SQLite: one row
// per interface identity, the record itself as a JSON document.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/netstate/internal/errors"
	"grimm.is/netstate/internal/state"
)

// Store is the saved-state database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the saved-state database. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal,
			"failed to open saved-state db at %s", path)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "failed to init saved-state schema")
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_interfaces (
		name TEXT NOT NULL,
		iface_type TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		doc TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (name, iface_type)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveState upserts every interface of the desired state. Interfaces
// marked absent are removed from the store instead: a saved state never
// describes what should not exist.
func (s *Store) SaveState(ctx context.Context, desired state.NetworkState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to begin saved-state tx")
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, iface := range desired.Ifaces.Iter() {
		if iface.IsAbsent() {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM saved_interfaces WHERE name = ? AND iface_type = ?`,
				iface.Name, string(iface.Type)); err != nil {
				return errors.Wrapf(err, errors.KindInternal,
					"failed to drop saved interface %s", iface.Name)
			}
			continue
		}
		doc, err := json.Marshal(iface)
		if err != nil {
			return errors.Wrapf(err, errors.KindStructural,
				"failed to serialize interface %s", iface.Name)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO saved_interfaces (name, iface_type, priority, doc, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name, iface_type) DO UPDATE SET
				priority = excluded.priority,
				doc = excluded.doc,
				updated_at = excluded.updated_at`,
			iface.Name, string(iface.Type), iface.EffectiveUpPriority(), string(doc), now); err != nil {
			return errors.Wrapf(err, errors.KindInternal,
				"failed to save interface %s", iface.Name)
		}
	}
	return tx.Commit()
}

// LoadState reads the whole saved state, lowest priority first.
func (s *Store) LoadState(ctx context.Context) (state.NetworkState, error) {
	ns := state.NewNetworkState()
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM saved_interfaces ORDER BY priority, name`)
	if err != nil {
		return ns, errors.Wrap(err, errors.KindInternal, "failed to load saved state")
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return ns, errors.Wrap(err, errors.KindInternal, "failed to scan saved interface")
		}
		iface := &state.Interface{}
		if err := json.Unmarshal([]byte(doc), iface); err != nil {
			return ns, errors.Wrap(err, errors.KindStructural,
				"corrupt saved interface document")
		}
		iface.Normalize()
		ns.Ifaces.Push(iface)
	}
	return ns, rows.Err()
}

// DeleteIface removes one saved interface identity.
func (s *Store) DeleteIface(ctx context.Context, name string, ifaceType state.InterfaceType) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_interfaces WHERE name = ? AND iface_type = ?`,
		name, string(ifaceType))
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal,
			"failed to delete saved interface %s", name)
	}
	return nil
}

// QuerySaved implements event.SavedQuerier.
func (s *Store) QuerySaved(ctx context.Context) (state.NetworkState, error) {
	return s.LoadState(ctx)
}
