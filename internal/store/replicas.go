package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"replicas/internal/models"
)

const replicaColumns = "id, datafile_id, url, protocol, verified, created_at, updated_at"

// ErrNotFound is returned by updates and deletes that matched no row.
var ErrNotFound = errors.New("not found")

// ReplicaExists checks whether a replica exists by id.
func (s *Store) ReplicaExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM replicas WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateReplica inserts one replica row. New replicas are never verified.
func (s *Store) CreateReplica(ctx context.Context, replica *models.Replica) error {
	if replica == nil {
		return fmt.Errorf("replica is required")
	}
	stampReplica(replica)
	return insertReplica(ctx, s.db, replica)
}

// CreateDatafileWithReplica registers a datafile and its first replica atomically.
func (s *Store) CreateDatafileWithReplica(ctx context.Context, datafile *models.Datafile, replica *models.Replica) error {
	if replica == nil {
		return fmt.Errorf("replica is required")
	}
	return s.CreateDatafileWithReplicas(ctx, datafile, []*models.Replica{replica})
}

// CreateDatafileWithReplicas registers a datafile and any number of replicas
// in one transaction.
func (s *Store) CreateDatafileWithReplicas(ctx context.Context, datafile *models.Datafile, replicas []*models.Replica) (err error) {
	if datafile == nil {
		return fmt.Errorf("datafile is required")
	}
	stampDatafile(datafile)
	for _, replica := range replicas {
		if replica == nil {
			return fmt.Errorf("replica is required")
		}
		stampReplica(replica)
		replica.DatafileID = datafile.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := insertDatafile(ctx, tx, datafile); err != nil {
		return err
	}
	for _, replica := range replicas {
		if err := insertReplica(ctx, tx, replica); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetReplica returns one replica, or nil when it does not exist.
func (s *Store) GetReplica(ctx context.Context, id string) (*models.Replica, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+replicaColumns+` FROM replicas WHERE id = ?`, id)
	return scanReplica(row)
}

// ListReplicas lists replicas ordered by creation time.
func (s *Store) ListReplicas(ctx context.Context, filter ReplicaFilter) ([]models.Replica, error) {
	var where []string
	var args []any
	if filter.DatafileID != "" {
		where = append(where, "datafile_id = ?")
		args = append(args, filter.DatafileID)
	}
	if filter.Verified != nil {
		where = append(where, "verified = ?")
		args = append(args, boolToInt(*filter.Verified))
	}

	query := `SELECT ` + replicaColumns + ` FROM replicas`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Replica
	for rows.Next() {
		replica, err := scanReplica(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *replica)
	}
	return out, rows.Err()
}

// UpdateReplicaLocation moves a replica and clears its verified flag.
func (s *Store) UpdateReplicaLocation(ctx context.Context, id, url, protocol string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE replicas SET url = ?, protocol = ?, verified = 0, updated_at = ? WHERE id = ?`,
		url, protocol, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, "replica", id)
}

// SaveVerification persists the replica's verified flag and, when datafile
// is non-nil, its size, checksums and mimetype in a single transaction.
func (s *Store) SaveVerification(ctx context.Context, replica *models.Replica, datafile *models.Datafile) (err error) {
	if replica == nil {
		return fmt.Errorf("replica is required")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The url guard stops a verification of stale bytes from landing on a
	// replica that was moved while it was being read.
	res, err := tx.ExecContext(ctx,
		`UPDATE replicas SET verified = ?, updated_at = ? WHERE id = ? AND url = ?`,
		boolToInt(replica.Verified), formatTime(now), replica.ID, replica.URL,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(res, "replica", replica.ID); err != nil {
		return err
	}

	if datafile != nil {
		datafile.ModifiedAt = now
		if err := updateDatafile(ctx, tx, datafile); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	replica.UpdatedAt = now
	return nil
}

// DeleteReplica removes one replica row.
func (s *Store) DeleteReplica(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM replicas WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "replica", id)
}

func stampReplica(replica *models.Replica) {
	now := time.Now().UTC()
	if replica.CreatedAt.IsZero() {
		replica.CreatedAt = now
	}
	if replica.UpdatedAt.IsZero() {
		replica.UpdatedAt = replica.CreatedAt
	}
	replica.Verified = false
}

func insertReplica(ctx context.Context, db execer, replica *models.Replica) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO replicas (`+replicaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		replica.ID,
		replica.DatafileID,
		replica.URL,
		replica.Protocol,
		boolToInt(replica.Verified),
		formatTime(replica.CreatedAt),
		formatTime(replica.UpdatedAt),
	)
	return err
}

func scanReplica(scanner interface {
	Scan(dest ...any) error
}) (*models.Replica, error) {
	replica := models.Replica{}
	var verified int
	var createdAt, updatedAt string

	err := scanner.Scan(&replica.ID, &replica.DatafileID, &replica.URL, &replica.Protocol, &verified, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	replica.Verified = verified != 0

	if replica.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if replica.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &replica, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// IsUniqueConstraint reports whether err is a SQLite unique violation.
func IsUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
