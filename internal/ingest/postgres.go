package ingest

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema of the reference table, ready for
// database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrations sub fs: %v", err))
	}
	return sub
}

const (
	selectReferences = `
		SELECT id, postcode, street, city, municipality, numbertype, minnumber, maxnumber
		FROM address_references
		ORDER BY postcode, street, minnumber`

	upsertReference = `
		INSERT INTO address_references (
			id, postcode, street, city, municipality, numbertype, minnumber, maxnumber, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			postcode = EXCLUDED.postcode,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			municipality = EXCLUDED.municipality,
			numbertype = EXCLUDED.numbertype,
			minnumber = EXCLUDED.minnumber,
			maxnumber = EXCLUDED.maxnumber,
			updated_at = NOW()`

	deleteReference = `DELETE FROM address_references WHERE id = $1`
)

// PostgresSource reads and stores reference records in the
// address_references table.
type PostgresSource struct {
	db     database.DBTX
	tracer database.QueryTracer
}

// NewPostgresSource creates a source backed by db.
func NewPostgresSource(db database.DBTX, tracer database.QueryTracer) *PostgresSource {
	return &PostgresSource{db: db, tracer: tracer}
}

// Name identifies the source in logs and errors.
func (s *PostgresSource) Name() string {
	return "postgres address_references"
}

// Each streams every stored record to fn.
func (s *PostgresSource) Each(ctx context.Context, fn func(domain.ReferenceRecord) error) (err error) {
	ctx, end := s.tracer.Trace(ctx, "LoadReferences", selectReferences)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, selectReferences)
	if err != nil {
		return fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r  domain.ReferenceRecord
			nt string
		)
		if err := rows.Scan(&r.ID, &r.Postcode, &r.Street, &r.City, &r.Municipality, &nt, &r.MinNumber, &r.MaxNumber); err != nil {
			return fmt.Errorf("scan reference: %w", err)
		}
		r.NumberType = domain.NumberType(nt)
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate references: %w", err)
	}
	return nil
}

// Store upserts records in one transaction and returns how many were written.
func (s *PostgresSource) Store(ctx context.Context, records []domain.ReferenceRecord) (n int, err error) {
	ctx, end := s.tracer.Trace(ctx, "StoreReferences", upsertReference)
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin store references: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, r := range records {
		if r.ID == "" {
			r.ID = r.Key()
		}
		if _, err = tx.Exec(ctx, upsertReference,
			r.ID, r.Postcode, r.Street, r.City, r.Municipality,
			string(r.NumberType), r.MinNumber, r.MaxNumber,
		); err != nil {
			return 0, fmt.Errorf("upsert reference %s: %w", r.ID, err)
		}
		n++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit store references: %w", err)
	}
	return n, nil
}

// Delete removes the record with id. A missing record is not an error.
func (s *PostgresSource) Delete(ctx context.Context, id string) (err error) {
	ctx, end := s.tracer.Trace(ctx, "DeleteReference", deleteReference)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteReference, id); err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	return nil
}
