package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salesiq/salesiq-agent/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

// FetchSchema reads the public schema from information_schema: every table,
// its columns in ordinal position order, and foreign-key targets. The result
// is a point-in-time snapshot; schema drift during an investigation is not
// detected.
func (s *PostgresStore) FetchSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	const columnQuery = `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name <> 'schema_migrations'
		ORDER BY table_name, ordinal_position`

	rows, err := s.pool.Query(ctx, columnQuery)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	desc := &models.SchemaDescriptor{}
	var current *models.Table
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		if current == nil || current.Name != table {
			desc.Tables = append(desc.Tables, models.Table{Name: table})
			current = &desc.Tables[len(desc.Tables)-1]
		}
		current.Columns = append(current.Columns, models.Column{
			Name:     column,
			DataType: dataType,
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}

	fks, err := s.foreignKeys(ctx)
	if err != nil {
		return nil, err
	}
	for i := range desc.Tables {
		t := &desc.Tables[i]
		for j := range t.Columns {
			if ref, ok := fks[t.Name+"."+t.Columns[j].Name]; ok {
				t.Columns[j].References = ref
			}
		}
	}

	return desc, nil
}

// foreignKeys maps "table.column" to its referenced "table.column".
func (s *PostgresStore) foreignKeys(ctx context.Context) (map[string]string, error) {
	const fkQuery = `
		SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := s.pool.Query(ctx, fkQuery)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	fks := make(map[string]string)
	for rows.Next() {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks[table+"."+column] = refTable + "." + refColumn
	}
	return fks, rows.Err()
}

// Execute runs a query and returns its rows. Failures are classified into
// the package sentinel errors so callers can decide on retries.
func (s *PostgresStore) Execute(ctx context.Context, query string) (*models.QueryResult, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &models.QueryResult{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// normalizeValue converts pgx scan types into plain Go values so downstream
// code only deals with float64/int64/string/time.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

// classifyError maps pgx and transport errors onto the package sentinels.
// SQLSTATE class 42 (syntax error or access rule violation) means the query
// text itself is defective; retrying it verbatim cannot succeed.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "42":
			return fmt.Errorf("%w: %s (%s)", ErrBadQuery, pgErr.Message, pgErr.Code)
		case pgErr.Code == "57014": // query_canceled (statement timeout)
			return fmt.Errorf("%w: %s", ErrTimeout, pgErr.Message)
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53"):
			// connection exception / insufficient resources
			return fmt.Errorf("%w: %s (%s)", ErrUnreachable, pgErr.Message, pgErr.Code)
		default:
			return fmt.Errorf("%w: %s (%s)", ErrBadQuery, pgErr.Message, pgErr.Code)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
