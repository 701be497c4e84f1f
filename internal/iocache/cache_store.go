package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// SQLStore keeps cache partitions in a SQL database.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.CacheStore = &SQLStore{} // Compile-time check

// NewSQLStore opens the database, applies pending migrations and returns the store.
func NewSQLStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetDBFilePath()
	}
	if err := migrateLatest(backend, connStr); err != nil {
		return nil, fmt.Errorf("failed to prepare %s schema: %w", backend, err)
	}
	db, err := openSQL(backend, connStr)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, backend: backend}, nil
}

// openSQL opens and pings a connection for the backend.
func openSQL(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		db, err = sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL cache: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL cache: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported SQL backend: %s. Must be sqlite, mysql, or postgresql", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// bind rewrites '?' placeholders for the backend.
func (s *SQLStore) bind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// openPartitionQuery inserts a partition row unless it already exists.
func (s *SQLStore) openPartitionQuery() string {
	switch s.backend {
	case schema.MySQLBackend:
		return `INSERT IGNORE INTO cache_partitions (name, created_at) VALUES (?, ?)`
	case schema.PostgreSQLBackend:
		return `INSERT INTO cache_partitions (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	default: // SQLite
		return `INSERT OR IGNORE INTO cache_partitions (name, created_at) VALUES (?, ?)`
	}
}

// getUpsertQuery returns the UPSERT query for the backend.
func (s *SQLStore) getUpsertQuery() string {
	const columns = `(partition_name, cache_key, url, status_code, response_type, header_json, body, stored_at)`
	switch s.backend {
	case schema.MySQLBackend:
		return `INSERT INTO cache_entries ` + columns + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE url = new.url, status_code = new.status_code, response_type = new.response_type,
			header_json = new.header_json, body = new.body, stored_at = new.stored_at`
	case schema.PostgreSQLBackend:
		return `INSERT INTO cache_entries ` + columns + ` VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (partition_name, cache_key) DO UPDATE SET url = EXCLUDED.url, status_code = EXCLUDED.status_code,
			response_type = EXCLUDED.response_type, header_json = EXCLUDED.header_json, body = EXCLUDED.body, stored_at = EXCLUDED.stored_at`
	default: // SQLite
		return `INSERT OR REPLACE INTO cache_entries ` + columns + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	}
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) openPartition(ctx context.Context, tx *sql.Tx, partition string) error {
	if _, err := tx.ExecContext(ctx, s.openPartitionQuery(), partition, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to open partition %s: %w", partition, err)
	}
	return nil
}

func (s *SQLStore) putEntry(ctx context.Context, tx *sql.Tx, partition string, resp *schema.CachedResponse) error {
	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, s.getUpsertQuery(),
		partition, resp.Key, resp.URL, resp.Status, string(resp.Type), resp.HeaderJSON(), nonNilBody(resp.Body), storedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store %s in %s: %w", resp.Key, partition, err)
	}
	return nil
}

// Open creates the partition if it does not exist yet.
func (s *SQLStore) Open(ctx context.Context, partition string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.openPartition(ctx, tx, partition)
	})
}

// Partitions lists partition names in creation order.
func (s *SQLStore) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_partitions ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Match returns the stored response for key, or nil on a miss.
func (s *SQLStore) Match(ctx context.Context, partition, key string) (*schema.CachedResponse, error) {
	query := s.bind(`SELECT url, status_code, response_type, header_json, body, stored_at
		FROM cache_entries WHERE partition_name = ? AND cache_key = ?`)

	var (
		resp       = &schema.CachedResponse{Key: key}
		respType   string
		headerJSON string
		storedAt   int64
	)
	err := s.db.QueryRowContext(ctx, query, partition, key).
		Scan(&resp.URL, &resp.Status, &respType, &headerJSON, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match %s in %s: %w", key, partition, err)
	}
	resp.Type = schema.ResponseType(respType)
	resp.Header = schema.ParseHeaderJSON(headerJSON)
	resp.StoredAt = time.Unix(0, storedAt)
	return resp, nil
}

// Put stores a response under its key, replacing any previous entry.
func (s *SQLStore) Put(ctx context.Context, partition string, resp *schema.CachedResponse) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.openPartition(ctx, tx, partition); err != nil {
			return err
		}
		return s.putEntry(ctx, tx, partition, resp)
	})
}

// PutAll stores every response in one transaction.
func (s *SQLStore) PutAll(ctx context.Context, partition string, resps []*schema.CachedResponse) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.openPartition(ctx, tx, partition); err != nil {
			return err
		}
		for _, resp := range resps {
			if err := s.putEntry(ctx, tx, partition, resp); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys lists the keys held by a partition in sorted order.
func (s *SQLStore) Keys(ctx context.Context, partition string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(`SELECT cache_key FROM cache_entries WHERE partition_name = ? ORDER BY cache_key`), partition)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", partition, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeletePartition removes a partition and its entries.
func (s *SQLStore) DeletePartition(ctx context.Context, partition string) (bool, error) {
	var existed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM cache_entries WHERE partition_name = ?`), partition); err != nil {
			return fmt.Errorf("failed to delete entries of %s: %w", partition, err)
		}
		res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM cache_partitions WHERE name = ?`), partition)
		if err != nil {
			return fmt.Errorf("failed to delete partition %s: %w", partition, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		existed = n > 0
		return nil
	})
	return existed, err
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetStatus returns status information about the cache store.
func (s *SQLStore) GetStatus(ctx context.Context) (schema.CacheStatus, error) {
	status := schema.CacheStatus{
		Backend:   string(s.backend),
		Connected: s.db != nil,
	}
	if s.db == nil {
		return status, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT p.name, p.created_at, COUNT(e.cache_key), COALESCE(SUM(LENGTH(e.body)), 0)
		FROM cache_partitions p LEFT JOIN cache_entries e ON e.partition_name = p.name
		GROUP BY p.name, p.created_at ORDER BY p.created_at, p.name`)
	if err != nil {
		return status, fmt.Errorf("failed to get partition status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ps schema.PartitionStatus
		var createdAt int64
		if err := rows.Scan(&ps.Name, &createdAt, &ps.Entries, &ps.Bytes); err != nil {
			return status, fmt.Errorf("failed to scan partition status: %w", err)
		}
		ps.CreatedAt = time.Unix(0, createdAt)
		status.Partitions = append(status.Partitions, ps)
		status.TotalEntries += ps.Entries
		status.TotalBytes += ps.Bytes
	}
	if err := rows.Err(); err != nil {
		return status, err
	}
	status.TotalPartitions = len(status.Partitions)

	if status.TotalEntries == 0 {
		return status, nil
	}

	var oldest, newest int64
	row := s.db.QueryRowContext(ctx, `SELECT MIN(stored_at), MAX(stored_at) FROM cache_entries`)
	if err := row.Scan(&oldest, &newest); err != nil {
		return status, fmt.Errorf("failed to get entry times: %w", err)
	}
	status.OldestEntryTime = time.Unix(0, oldest)
	status.LastEntryTime = time.Unix(0, newest)
	return status, nil
}

// nonNilBody keeps NOT NULL body columns satisfied for empty responses.
func nonNilBody(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
