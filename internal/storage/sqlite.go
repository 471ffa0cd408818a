package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/legaleagle/internal/models"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		title TEXT,
		sha256 TEXT NOT NULL,
		pages INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		backend TEXT NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_ingested_at ON contracts(ingested_at);

	CREATE TABLE IF NOT EXISTS contract_chunks (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		page INTEGER NOT NULL,
		position INTEGER NOT NULL,
		chunk_length INTEGER NOT NULL,
		FOREIGN KEY (contract_id) REFERENCES contracts(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_contract_id ON contract_chunks(contract_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_contract_position ON contract_chunks(contract_id, position);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveContract inserts or replaces a contract. A zero IngestedAt is set to now.
func (s *SQLiteRegistry) SaveContract(ctx context.Context, c *models.Contract) error {
	if c.IngestedAt.IsZero() {
		c.IngestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contracts (id, path, title, sha256, pages, chunks, size_bytes, backend, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   path = excluded.path,
		   title = excluded.title,
		   sha256 = excluded.sha256,
		   pages = excluded.pages,
		   chunks = excluded.chunks,
		   size_bytes = excluded.size_bytes,
		   backend = excluded.backend,
		   ingested_at = excluded.ingested_at`,
		c.ID, c.Path, c.Title, c.SHA256, c.Pages, c.Chunks, c.SizeBytes, c.Backend, c.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract %s: %w", c.ID, err)
	}
	return nil
}

const contractColumns = `id, path, title, sha256, pages, chunks, size_bytes, backend, ingested_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var c models.Contract
	var title sql.NullString
	if err := row.Scan(&c.ID, &c.Path, &title, &c.SHA256, &c.Pages, &c.Chunks, &c.SizeBytes, &c.Backend, &c.IngestedAt); err != nil {
		return nil, err
	}
	c.Title = title.String
	return &c, nil
}

// GetContract returns a contract by ID.
func (s *SQLiteRegistry) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contract %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListContracts returns contracts, most recently ingested first.
func (s *SQLiteRegistry) ListContracts(ctx context.Context, offset, limit int) ([]*models.Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts ORDER BY ingested_at DESC, path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// BatchCreateChunks inserts multiple chunk records in a transaction.
func (s *SQLiteRegistry) BatchCreateChunks(ctx context.Context, chunks []*models.ContractChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contract_chunks (id, contract_id, page, position, chunk_length)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.ContractID, ch.Page, ch.Position, ch.ChunkLength); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunksByContractID returns the chunk records of a contract in document order.
func (s *SQLiteRegistry) GetChunksByContractID(ctx context.Context, contractID string) ([]*models.ContractChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contract_id, page, position, chunk_length
		 FROM contract_chunks WHERE contract_id = ? ORDER BY position`,
		contractID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.ContractChunk
	for rows.Next() {
		var ch models.ContractChunk
		if err := rows.Scan(&ch.ID, &ch.ContractID, &ch.Page, &ch.Position, &ch.ChunkLength); err != nil {
			return nil, err
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// DeleteChunksByContractID removes the chunk records of a contract.
func (s *SQLiteRegistry) DeleteChunksByContractID(ctx context.Context, contractID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contract_chunks WHERE contract_id = ?`, contractID)
	return err
}

// CountContracts returns the total number of contracts.
func (s *SQLiteRegistry) CountContracts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunk records.
func (s *SQLiteRegistry) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contract_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}
