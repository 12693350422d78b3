package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect describes the SQL differences between supported databases
type Dialect struct {
	Name       string
	DriverName string
	// jsonParam casts a bound parameter to the document column type
	jsonParam string
	// selectData reads the document column as text
	selectData string
	// extract returns the expression reading a top-level string field
	extract func(field string) string
}

// Postgres stores documents as JSONB
var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "pgx",
	jsonParam:  "CAST(? AS JSONB)",
	selectData: "data::text",
	extract: func(field string) string {
		return fmt.Sprintf("data->>'%s'", field)
	},
}

// SQLite stores documents as JSON text
var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite3",
	jsonParam:  "?",
	selectData: "data",
	extract: func(field string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", field)
	},
}

// DialectFor returns the dialect registered under name
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported SQL dialect %q", name)
}

// SQLStore keeps documents in a single table keyed by (collection, id)
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLStore connects to dsn with the dialect's driver
func NewSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialect.Name == SQLite.Name {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	log.Info().Str("dialect", dialect.Name).Msg("✅ Database connected")
	return &SQLStore{db: db, dialect: dialect}, nil
}

// DB exposes the underlying connection, used by the migrator
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Migrate applies the embedded schema migrations for the store's dialect
func (s *SQLStore) Migrate() error {
	return Migrate(s.db.DB, s.dialect)
}

// Migrate applies the embedded schema migrations to db
func Migrate(db *sql.DB, dialect Dialect) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialect.Name)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var driver database.Driver
	switch dialect.Name {
	case Postgres.Name:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case SQLite.Name:
		driver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		err = fmt.Errorf("unsupported SQL dialect %q", dialect.Name)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.Name, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// the sqlite driver closes the shared *sql.DB on Close
	if dialect.Name != SQLite.Name {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

type documentRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// Get implements Store
func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	query := s.db.Rebind(fmt.Sprintf(
		`SELECT id, %s AS data FROM documents WHERE collection = ? AND id = ?`, s.dialect.selectData))

	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrap("get", collection, id, err)
	}

	doc, err := row.doc()
	if err != nil {
		return nil, wrap("get", collection, id, err)
	}
	return doc, nil
}

// Set implements Store
func (s *SQLStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	if err := validateID(id); err != nil {
		return wrap("set", collection, id, err)
	}

	body := fields
	if mergeFields {
		existing, err := s.Get(ctx, collection, id)
		switch {
		case err == nil:
			body = merge(existing.Fields, fields)
		case err != ErrNotFound:
			return err
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return wrap("set", collection, id, err)
	}

	query := s.db.Rebind(fmt.Sprintf(`INSERT INTO documents (collection, id, data) VALUES (?, ?, %s)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`, s.dialect.jsonParam))

	if _, err := s.db.ExecContext(ctx, query, collection, id, string(data)); err != nil {
		return wrap("set", collection, id, err)
	}
	return nil
}

// Delete implements Store
func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	query := s.db.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`)
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return wrap("delete", collection, id, err)
	}
	return nil
}

// Query implements Store
func (s *SQLStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if err := validateQuery(q); err != nil {
		return nil, wrap("query", collection, "", err)
	}

	conditions := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range q.Where {
		conditions = append(conditions, s.dialect.extract(f.Field)+" = ?")
		args = append(args, f.Value)
	}

	orderBy := " ORDER BY seq ASC"
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		orderBy = fmt.Sprintf(" ORDER BY %s %s, seq ASC", s.dialect.extract(q.OrderBy), dir)
	}

	query := s.db.Rebind(fmt.Sprintf(`SELECT id, %s AS data FROM documents WHERE %s%s`,
		s.dialect.selectData, strings.Join(conditions, " AND "), orderBy))

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap("query", collection, "", err)
	}

	docs := make([]Doc, 0, len(rows))
	for _, row := range rows {
		doc, err := row.doc()
		if err != nil {
			return nil, wrap("query", collection, row.ID, err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// Insert implements Store
func (s *SQLStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// Ping implements Store
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (r documentRow) doc() (*Doc, error) {
	var fields Fields
	if err := json.Unmarshal([]byte(r.Data), &fields); err != nil {
		return nil, err
	}
	return &Doc{ID: r.ID, Fields: fields}, nil
}
