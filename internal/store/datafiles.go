package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"replicas/internal/models"
)

const datafileColumns = "id, filename, size, md5sum, sha512sum, mimetype, created_at, modified_at"

// DatafileExists checks whether a datafile exists by id.
func (s *Store) DatafileExists(id string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM datafiles WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateDatafile inserts one datafile row.
func (s *Store) CreateDatafile(ctx context.Context, datafile *models.Datafile) error {
	if datafile == nil {
		return fmt.Errorf("datafile is required")
	}
	stampDatafile(datafile)
	return insertDatafile(ctx, s.db, datafile)
}

// GetDatafile returns one datafile, or nil when it does not exist.
func (s *Store) GetDatafile(ctx context.Context, id string) (*models.Datafile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datafileColumns+` FROM datafiles WHERE id = ?`, id)
	return scanDatafile(row)
}

// UpdateDatafile writes size, checksums and mimetype in one statement.
func (s *Store) UpdateDatafile(ctx context.Context, datafile *models.Datafile) error {
	if datafile == nil {
		return fmt.Errorf("datafile is required")
	}
	datafile.ModifiedAt = time.Now().UTC()
	return updateDatafile(ctx, s.db, datafile)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func stampDatafile(datafile *models.Datafile) {
	now := time.Now().UTC()
	if datafile.CreatedAt.IsZero() {
		datafile.CreatedAt = now
	}
	if datafile.ModifiedAt.IsZero() {
		datafile.ModifiedAt = datafile.CreatedAt
	}
}

func insertDatafile(ctx context.Context, db execer, datafile *models.Datafile) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO datafiles (`+datafileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		datafile.ID,
		datafile.Filename,
		nullString(datafile.Size),
		nullString(datafile.MD5Sum),
		nullString(datafile.SHA512Sum),
		nullString(datafile.Mimetype),
		formatTime(datafile.CreatedAt),
		formatTime(datafile.ModifiedAt),
	)
	return err
}

func updateDatafile(ctx context.Context, db execer, datafile *models.Datafile) error {
	res, err := db.ExecContext(ctx,
		`UPDATE datafiles SET size = ?, md5sum = ?, sha512sum = ?, mimetype = ?, modified_at = ? WHERE id = ?`,
		nullString(datafile.Size),
		nullString(datafile.MD5Sum),
		nullString(datafile.SHA512Sum),
		nullString(datafile.Mimetype),
		formatTime(datafile.ModifiedAt),
		datafile.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, "datafile", datafile.ID)
}

func scanDatafile(scanner interface {
	Scan(dest ...any) error
}) (*models.Datafile, error) {
	datafile := models.Datafile{}
	var size, md5sum, sha512sum, mimetype sql.NullString
	var createdAt, modifiedAt string

	err := scanner.Scan(&datafile.ID, &datafile.Filename, &size, &md5sum, &sha512sum, &mimetype, &createdAt, &modifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	datafile.Size = size.String
	datafile.MD5Sum = md5sum.String
	datafile.SHA512Sum = sha512sum.String
	datafile.Mimetype = mimetype.String

	if datafile.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if datafile.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	return &datafile, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
