package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/ports"
)

//go:embed schema.sql
var schemaDDL string

// defaultBatchSize bounds rows per INSERT; the widest table binds 7
// parameters per row, far below the 65535 parameter protocol limit.
const defaultBatchSize = 500

// PostgresRepository persists normalized accident records into Postgres.
type PostgresRepository struct {
	db        *sql.DB
	batchSize int
}

var _ ports.RecordRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, batchSize: defaultBatchSize}
}

// Persists reports whether SaveRecords writes anywhere.
func (r *PostgresRepository) Persists() bool {
	return r != nil && r.db != nil
}

// Open connects through the pgx driver; a non-empty schema becomes the search_path.
func Open(dsn, schema string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if schema != "" {
		cfg.RuntimeParams["search_path"] = pgx.Identifier{schema}.Sanitize()
	}
	return stdlib.OpenDB(*cfg), nil
}

// EnsureSchema creates the accident tables when they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LastSourceID returns the highest numeric-looking source id loaded for
// source, empty when none. Ids are compared by length first so "27709"
// sorts above "9".
func (r *PostgresRepository) LastSourceID(ctx context.Context, source string) (string, error) {
	if r.db == nil {
		return "", nil
	}

	query, args, err := squirrel.
		Select("source_id").
		From("accidents").
		Where(squirrel.Eq{"source": source}).
		OrderBy("LENGTH(source_id) DESC", "source_id DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build last source id query: %w", err)
	}

	var last sql.NullString
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query last source id: %w", err)
	}
	return last.String, nil
}

// SaveRecords inserts all records in one transaction. Sites are deduplicated
// by (plant name, address) and existing rows are never overwritten.
func (r *PostgresRepository) SaveRecords(ctx context.Context, records []domain.AccidentRecord) (err error) {
	if r.db == nil || len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.exec(ctx, tx, sitesInsert(records)); err != nil {
		return err
	}

	siteIDs, err := loadSiteIDs(ctx, tx)
	if err != nil {
		return err
	}

	for _, stmt := range []insertStatement{
		accidentsInsert(records, siteIDs),
		causesInsert(records),
		substancesInsert(records),
		humanInsert(records),
		otherInsert(records),
	} {
		if err = r.exec(ctx, tx, stmt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertStatement is one table's rows; base carries columns and suffix.
type insertStatement struct {
	table string
	base  squirrel.InsertBuilder
	rows  [][]any
}

func newInsert(table, suffix string, columns ...string) insertStatement {
	return insertStatement{
		table: table,
		base:  squirrel.Insert(table).Columns(columns...).Suffix(suffix),
	}
}

func (s *insertStatement) add(values ...any) {
	s.rows = append(s.rows, values)
}

// exec writes the statement rows in batches of at most r.batchSize.
func (r *PostgresRepository) exec(ctx context.Context, tx *sql.Tx, stmt insertStatement) error {
	size := r.batchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	for chunk := range slices.Chunk(stmt.rows, size) {
		builder := stmt.base
		for _, values := range chunk {
			builder = builder.Values(values...)
		}

		query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("build %s insert: %w", stmt.table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", stmt.table, err)
		}
	}
	return nil
}

func sitesInsert(records []domain.AccidentRecord) insertStatement {
	stmt := newInsert("sites", "ON CONFLICT (plant_name, address) DO NOTHING",
		"site_id", "plant_name", "address", "latitude", "longitude", "country", "industrial_activity")

	seen := map[domain.SiteKey]struct{}{}
	for _, rec := range records {
		key := rec.Site.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		s := rec.Site
		stmt.add(s.SiteID, s.PlantName, s.Address, nullableFloat(s.Latitude), nullableFloat(s.Longitude), s.Country, s.IndustrialActivity)
	}
	return stmt
}

func loadSiteIDs(ctx context.Context, tx *sql.Tx) (map[domain.SiteKey]string, error) {
	query, args, err := squirrel.Select("site_id", "plant_name", "address").From("sites").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build site mapping query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query site mapping: %w", err)
	}

	mapping := map[domain.SiteKey]string{}
	for rows.Next() {
		var id string
		var key domain.SiteKey
		if err := rows.Scan(&id, &key.PlantName, &key.Address); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan site: %w", err)
		}
		mapping[key] = id
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return mapping, nil
}

func accidentsInsert(records []domain.AccidentRecord, siteIDs map[domain.SiteKey]string) insertStatement {
	stmt := newInsert("accidents", "ON CONFLICT DO NOTHING",
		"accident_id", "site_id", "title", "source", "source_id", "accident_date", "severity_scale")

	for _, rec := range records {
		a := rec.Accident
		siteID, ok := siteIDs[rec.Site.Key()]
		if !ok {
			siteID = a.SiteID
		}
		stmt.add(a.AccidentID, siteID, a.Title, a.Source, a.SourceID, nullableTime(a.AccidentDate), a.SeverityScale)
	}
	return stmt
}

func causesInsert(records []domain.AccidentRecord) insertStatement {
	stmt := newInsert("causes", "ON CONFLICT (accident_id) DO NOTHING",
		"accident_id", "event_category", "failure", "description")

	for _, rec := range records {
		c := rec.Causes
		stmt.add(c.AccidentID, c.EventCategory, c.Failure, c.Description)
	}
	return stmt
}

func substancesInsert(records []domain.AccidentRecord) insertStatement {
	stmt := newInsert("substances", "ON CONFLICT DO NOTHING",
		"accident_id", "name", "cas_number", "quantity", "clp_class")

	for _, rec := range records {
		for _, s := range rec.Substances {
			stmt.add(s.AccidentID, s.Name, s.CASNumber, s.Quantity, s.CLPClass)
		}
	}
	return stmt
}

func humanInsert(records []domain.AccidentRecord) insertStatement {
	stmt := newInsert("consequences_human", "ON CONFLICT (accident_id) DO NOTHING",
		"accident_id", "fatalities", "injuries", "evacuated", "hospitalized")

	for _, rec := range records {
		h := rec.HumanConsequences
		stmt.add(h.AccidentID, h.Fatalities, h.Injuries, h.Evacuated, h.Hospitalized)
	}
	return stmt
}

func otherInsert(records []domain.AccidentRecord) insertStatement {
	stmt := newInsert("consequences_other", "ON CONFLICT (accident_id) DO NOTHING",
		"accident_id", "environmental_impact", "economic_cost", "disruption_duration")

	for _, rec := range records {
		o := rec.OtherConsequences
		stmt.add(o.AccidentID, o.EnvironmentalImpact, o.EconomicCost, o.DisruptionDuration)
	}
	return stmt
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
