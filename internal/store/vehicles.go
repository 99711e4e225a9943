package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

const vehicleColumns = "vehicle_id, kind, name, added, last_update, record_name, record_id"

// toNano and fromNano convert between time.Time and the UTC Unix-nanosecond
// representation stored in the database.
func toNano(t time.Time) int64   { return t.UTC().UnixNano() }
func fromNano(n int64) time.Time { return time.Unix(0, n).UTC() }

// SaveVehicle creates or updates a vehicle through the local-edit path.
// When v.ID is empty a new vehicle is created with a generated UUID v7 and
// Added set to now; in both cases LastUpdate is advanced to now so the next
// sync run picks the change up. Returns the actual ID used.
func (s *Store) SaveVehicle(v *types.Vehicle) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	if !v.Kind.IsRoot() {
		return "", types.ErrInvalidKind
	}
	if v.Name == "" {
		return "", types.ErrInvalidData
	}

	now := time.Now().UTC()
	isCreate := v.ID == ""
	if isCreate {
		v.ID = newID()
		v.Added = now
	}
	v.LastUpdate = now

	recordName, recordID := identityColumns(v.Remote)

	if isCreate {
		_, err = db.Exec(
			"INSERT INTO vehicles ("+vehicleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
			v.ID, v.Kind, v.Name, toNano(v.Added), toNano(v.LastUpdate), recordName, recordID,
		)
	} else {
		var res sql.Result
		res, err = db.Exec(
			"UPDATE vehicles SET name = ?, last_update = ?, record_name = ?, record_id = ? WHERE vehicle_id = ?",
			v.Name, toNano(v.LastUpdate), recordName, recordID, v.ID,
		)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return "", types.ErrNotFound
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("persisting vehicle: %w", err)
	}

	ref := ObjectRef{Kind: v.Kind, ID: v.ID, RecordName: v.Remote.RecordName}
	if isCreate {
		s.publish(ChangeSet{Inserted: []ObjectRef{ref}})
	} else {
		s.publish(ChangeSet{Updated: []ObjectRef{ref}})
	}
	return v.ID, nil
}

// GetVehicle retrieves a vehicle by ID.
func (s *Store) GetVehicle(id string) (*types.Vehicle, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := db.QueryRow("SELECT "+vehicleColumns+" FROM vehicles WHERE vehicle_id = ?", id)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting vehicle %s: %w", id, err)
	}
	return v, nil
}

// ListVehicles returns all vehicles of the given kind ordered by added time,
// or every vehicle when kind is empty.
func (s *Store) ListVehicles(kind types.Kind) ([]*types.Vehicle, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + vehicleColumns + " FROM vehicles"
	var args []any
	if kind != "" {
		if !kind.IsRoot() {
			return nil, types.ErrInvalidKind
		}
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY added ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}
	defer rows.Close()
	return collectVehicles(rows)
}

// VehiclesChangedSince returns vehicles of the given kind whose last_update
// is strictly after the watermark.
func (s *Store) VehiclesChangedSince(kind types.Kind, watermark time.Time) ([]*types.Vehicle, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if !kind.IsRoot() {
		return nil, types.ErrInvalidKind
	}
	rows, err := db.Query(
		"SELECT "+vehicleColumns+" FROM vehicles WHERE kind = ? AND last_update > ? ORDER BY added ASC",
		kind, toNano(watermark),
	)
	if err != nil {
		return nil, fmt.Errorf("querying changed vehicles: %w", err)
	}
	defer rows.Close()
	return collectVehicles(rows)
}

// FindVehicleByRecordName looks a vehicle up by its record name. Returns
// ErrNotFound when no vehicle carries the name and ErrDuplicateRecord when
// more than one does, which indicates local corruption.
func (s *Store) FindVehicleByRecordName(recordName string) (*types.Vehicle, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+vehicleColumns+" FROM vehicles WHERE record_name = ? LIMIT 2", recordName,
	)
	if err != nil {
		return nil, fmt.Errorf("finding vehicle by record name: %w", err)
	}
	defer rows.Close()

	found, err := collectVehicles(rows)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, types.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, types.ErrDuplicateRecord
	}
}

// StampVehicleIdentity records the remote identity assigned to a vehicle by
// an acknowledged push. The stamp is not a user edit, so last_update is left
// alone and no notification is published.
func (s *Store) StampVehicleIdentity(id string, ri types.RemoteIdentity) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	recordName, recordID := identityColumns(ri)
	res, err := db.Exec(
		"UPDATE vehicles SET record_name = ?, record_id = ? WHERE vehicle_id = ?",
		recordName, recordID, id,
	)
	if err != nil {
		return fmt.Errorf("stamping vehicle identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteVehicle removes a vehicle and cascades to its notes. Tombstones are
// written in the same transaction for the vehicle and every note that has
// been synced, so the deletions propagate on the next run.
func (s *Store) DeleteVehicle(id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	v, err := s.GetVehicle(id)
	if err != nil {
		return err
	}
	notes, err := s.ListNotes(id)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM notes WHERE owner_id = ?", id); err != nil {
		return fmt.Errorf("deleting notes for vehicle: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM vehicles WHERE vehicle_id = ?", id); err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}

	zone, err := types.ZoneForKind(v.Kind)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := insertTombstone(tx, v.Remote, v.Kind, zone, now); err != nil {
		return err
	}
	deleted := []ObjectRef{{Kind: v.Kind, ID: v.ID, RecordName: v.Remote.RecordName}}
	for _, n := range notes {
		// Notes live in their owner's zone, so they share its tombstone zone.
		if err := insertTombstone(tx, n.Remote, types.KindNote, zone, now); err != nil {
			return err
		}
		deleted = append(deleted, ObjectRef{Kind: types.KindNote, ID: n.ID, RecordName: n.Remote.RecordName})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vehicle deletion: %w", err)
	}

	s.publish(ChangeSet{Deleted: deleted})
	return nil
}

// scanner abstracts sql.Row and sql.Rows for the hydrate helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanVehicle hydrates one row into a *types.Vehicle.
func scanVehicle(row scanner) (*types.Vehicle, error) {
	var v types.Vehicle
	var added, lastUpdate int64
	var recordName sql.NullString
	var recordID []byte
	if err := row.Scan(&v.ID, &v.Kind, &v.Name, &added, &lastUpdate, &recordName, &recordID); err != nil {
		return nil, err
	}
	v.Added = fromNano(added)
	v.LastUpdate = fromNano(lastUpdate)
	v.Remote = identityFromColumns(recordName, recordID)
	return &v, nil
}

// collectVehicles drains rows into a slice of vehicles.
func collectVehicles(rows *sql.Rows) ([]*types.Vehicle, error) {
	var result []*types.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating vehicle: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicles: %w", err)
	}
	return result, nil
}
