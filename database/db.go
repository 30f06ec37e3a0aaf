package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	apperrors "rag-gateway/errors"
	"rag-gateway/ingest"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists ingestion results and their attempt audit trails. It is
// the storage collaborator the fallback chain hands extracted content to.
type Store struct {
	DB *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	log.Println("Successfully connected to the database")
	return &Store{DB: db}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            file_id TEXT PRIMARY KEY,
            org_id TEXT NOT NULL,
            filename TEXT NOT NULL,
            final_strategy TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_org_id ON documents(org_id)`,
		`CREATE TABLE IF NOT EXISTS document_nodes (
            file_id TEXT REFERENCES documents(file_id) ON DELETE CASCADE,
            ordinal INT NOT NULL,
            title TEXT DEFAULT '',
            content TEXT NOT NULL,
            page INT DEFAULT 0,
            PRIMARY KEY (file_id, ordinal)
        )`,
		`CREATE TABLE IF NOT EXISTS parse_attempts (
            file_id TEXT REFERENCES documents(file_id) ON DELETE CASCADE,
            ordinal INT NOT NULL,
            strategy TEXT NOT NULL,
            outcome TEXT NOT NULL,
            failure_reason TEXT DEFAULT '',
            duration_ms BIGINT NOT NULL,
            PRIMARY KEY (file_id, ordinal)
        )`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// StoredDocument is a persisted ingestion result with its audit trail.
type StoredDocument struct {
	FileID        string           `json:"fileId"`
	OrgID         string           `json:"orgId"`
	Filename      string           `json:"filename"`
	FinalStrategy string           `json:"finalStrategy"`
	CreatedAt     time.Time        `json:"createdAt"`
	Nodes         []ingest.Node    `json:"nodes"`
	Attempts      []ingest.Attempt `json:"attempts"`
}

// SaveIngestion writes the document, its content nodes, and the full
// attempt trail in one transaction.
func (s *Store) SaveIngestion(ctx context.Context, orgID, filename string, res *ingest.Result) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.WrapError(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (file_id, org_id, filename, final_strategy) VALUES ($1, $2, $3, $4)
         ON CONFLICT (file_id) DO UPDATE SET filename = EXCLUDED.filename, final_strategy = EXCLUDED.final_strategy`,
		res.FileID, orgID, filename, res.FinalStrategy.String()); err != nil {
		return apperrors.WrapError(err, "insert document")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_nodes WHERE file_id = $1`, res.FileID); err != nil {
		return apperrors.WrapError(err, "clear document nodes")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM parse_attempts WHERE file_id = $1`, res.FileID); err != nil {
		return apperrors.WrapError(err, "clear parse attempts")
	}

	for i, node := range res.Nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_nodes (file_id, ordinal, title, content, page) VALUES ($1, $2, $3, $4, $5)`,
			res.FileID, i, node.Title, node.Text, node.Page); err != nil {
			return apperrors.WrapError(err, "insert document node")
		}
	}
	for i, attempt := range res.Attempts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parse_attempts (file_id, ordinal, strategy, outcome, failure_reason, duration_ms) VALUES ($1, $2, $3, $4, $5, $6)`,
			res.FileID, i, attempt.Strategy.String(), attempt.Outcome.String(), attempt.FailureReason, attempt.Duration.Milliseconds()); err != nil {
			return apperrors.WrapError(err, "insert parse attempt")
		}
	}

	return tx.Commit()
}

// GetIngestion loads a stored document with nodes and attempt trail.
func (s *Store) GetIngestion(ctx context.Context, fileID string) (*StoredDocument, error) {
	doc := &StoredDocument{FileID: fileID}
	err := s.DB.QueryRowContext(ctx,
		`SELECT org_id, filename, final_strategy, created_at FROM documents WHERE file_id = $1`, fileID).
		Scan(&doc.OrgID, &doc.Filename, &doc.FinalStrategy, &doc.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "document %s", fileID)
	}
	if err != nil {
		return nil, apperrors.WrapError(err, "load document")
	}

	nodeRows, err := s.DB.QueryContext(ctx,
		`SELECT title, content, page FROM document_nodes WHERE file_id = $1 ORDER BY ordinal`, fileID)
	if err != nil {
		return nil, apperrors.WrapError(err, "load document nodes")
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var node ingest.Node
		if err := nodeRows.Scan(&node.Title, &node.Text, &node.Page); err != nil {
			return nil, apperrors.WrapError(err, "scan document node")
		}
		doc.Nodes = append(doc.Nodes, node)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, apperrors.WrapError(err, "iterate document nodes")
	}

	attemptRows, err := s.DB.QueryContext(ctx,
		`SELECT strategy, outcome, failure_reason, duration_ms FROM parse_attempts WHERE file_id = $1 ORDER BY ordinal`, fileID)
	if err != nil {
		return nil, apperrors.WrapError(err, "load parse attempts")
	}
	defer attemptRows.Close()
	for attemptRows.Next() {
		var strategy, outcome, reason string
		var durationMs int64
		if err := attemptRows.Scan(&strategy, &outcome, &reason, &durationMs); err != nil {
			return nil, apperrors.WrapError(err, "scan parse attempt")
		}
		doc.Attempts = append(doc.Attempts, ingest.Attempt{
			Strategy:      parseStrategy(strategy),
			Outcome:       parseOutcome(outcome),
			FailureReason: reason,
			Duration:      time.Duration(durationMs) * time.Millisecond,
		})
	}
	if err := attemptRows.Err(); err != nil {
		return nil, apperrors.WrapError(err, "iterate parse attempts")
	}

	return doc, nil
}

func parseStrategy(s string) ingest.Strategy {
	switch s {
	case "alternate_parser":
		return ingest.StrategyAlternateParser
	case "plain_text":
		return ingest.StrategyPlainText
	}
	return ingest.StrategyPrimaryService
}

func parseOutcome(s string) ingest.Outcome {
	if s == "success" {
		return ingest.OutcomeSuccess
	}
	return ingest.OutcomeFailure
}
