package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/record"
	"github.com/artpar/dbedit/pkg/errors"
)

// SQLiteStore writes exported tables to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// ExportResult summarizes one export.
type ExportResult struct {
	Table   string
	Columns []ColumnDef
	Rows    int
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.IOf(err, "open database %s", path)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.IOf(err, "set pragma")
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// NewSQLiteStoreFromDB creates a SQLite storage from an existing connection.
func NewSQLiteStoreFromDB(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger}
}

// Export replaces the profile's table with the records of doc. Absent
// fields are written as their template default. Everything happens in
// one transaction: on failure the previous table is kept.
func (s *SQLiteStore) Export(ctx context.Context, doc *record.Document, p *schema.Profile) (ExportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := TableName(p)
	cols := Columns(doc, p)
	result := ExportResult{Table: table, Columns: cols}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, errors.IOf(err, "begin export")
	}
	defer tx.Rollback()

	stmts := []string{"DROP TABLE IF EXISTS " + quoteIdent(table), BuildCreateTableSQL(table, cols)}
	stmts = append(stmts, BuildIndexSQL(table, cols)...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return result, errors.IOf(err, "create table %s", table)
		}
	}

	insert, err := tx.PrepareContext(ctx, BuildInsertSQL(table, cols))
	if err != nil {
		return result, errors.IOf(err, "prepare insert")
	}
	defer insert.Close()

	for i, rec := range doc.Records {
		values := make([]any, len(cols))
		for j, c := range cols {
			v, ok := rec.Get(c.Name)
			if !ok {
				v = c.Default
			}
			if values[j], err = convertValue(v, c.Kind); err != nil {
				return result, errors.Formatf("record %d: %s: %v", i, c.Name, err)
			}
		}

		if _, err := insert.ExecContext(ctx, values...); err != nil {
			var sqlErr sqlite3.Error
			if stderrors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
				return result, errors.Validationf("record %d: duplicate Id %d", i, rec.Int(record.KeyID))
			}
			return result, errors.IOf(err, "insert record %d", i)
		}
		result.Rows++
	}

	if err := tx.Commit(); err != nil {
		return result, errors.IOf(err, "commit export")
	}

	s.logger.Info().
		Str("table", table).
		Int("columns", len(cols)).
		Int("records", result.Rows).
		Msg("document exported")
	return result, nil
}

// List reads every row of table ordered by Id.
func (s *SQLiteStore) List(ctx context.Context, table string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY "+quoteIdent(record.KeyID))
	if err != nil {
		return nil, errors.IOf(err, "query %s", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.IOf(err, "columns of %s", table)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		scanDest := make([]any, len(columns))
		for i := range values {
			scanDest[i] = &values[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, errors.IOf(err, "scan %s", table)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertFromDB(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.IOf(err, "read %s", table)
	}
	return result, nil
}

// Close closes the storage connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// convertValue converts a record value to a database value.
func convertValue(val any, kind schema.Kind) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch kind {
	case schema.KindBoolean:
		if b, ok := val.(bool); ok {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		return record.Text(val), nil
	case schema.KindFlatMap, schema.KindPairList:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case schema.KindInteger:
		if n, ok := record.IntValue(val); ok {
			return n, nil
		}
		return record.Text(val), nil
	default:
		switch t := val.(type) {
		case string:
			return t, nil
		case *record.Map, []any:
			data, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}
		return record.Text(val), nil
	}
}

// convertFromDB converts a database value to a Go value.
func convertFromDB(val any) any {
	// Handle byte slices as strings for text fields
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}
