// Package data provides the Postgres-backed document repository and time helpers for stockgate.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by DocumentRepo.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const documentColumns = "id, body, created_at, updated_at"

// DocumentRepo stores document collections in a single jsonb table.
// Timestamps are assigned by the database.
type DocumentRepo struct {
	db DBTX
}

var _ ports.DocumentStore = (*DocumentRepo)(nil)

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(db DBTX) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Get returns one document; a missing document is NotFound.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Document{}, apperrors.NotFoundf("document %s/%s not found", collection, id)
		}
		return ports.Document{}, apperrors.MapDBError(err)
	}
	return doc, nil
}

// Set creates or replaces a document.
func (r *DocumentRepo) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := encodeBody(collection, id, fields)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("set document: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Add creates a document under a new id.
func (r *DocumentRepo) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	body, err := encodeBody(collection, id, fields)
	if err != nil {
		return "", err
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`,
		collection, id, body); err != nil {
		return "", fmt.Errorf("add document: %w", apperrors.MapDBError(err))
	}
	return id, nil
}

// Update merges fields into an existing document; a missing document is NotFound.
func (r *DocumentRepo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := encodeBody(collection, id, fields)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET body = body || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("update document: %w", apperrors.MapDBError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("document %s/%s not found", collection, id)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *DocumentRepo) Delete(ctx context.Context, collection, id string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id); err != nil {
		return fmt.Errorf("delete document: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns the collection in creation order.
func (r *DocumentRepo) List(ctx context.Context, collection string) ([]ports.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = $1 ORDER BY created_at, id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", apperrors.MapDBError(err))
	}
	return collectDocuments(rows)
}

// FindBy returns documents whose top-level field equals value, using jsonb containment.
func (r *DocumentRepo) FindBy(ctx context.Context, collection, field string, value any) ([]ports.Document, error) {
	if field == "" {
		return nil, apperrors.ValidationField("field", "is required")
	}
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, apperrors.Validationf("query value: %v", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE collection = $1 AND body @> $2::jsonb
		ORDER BY created_at, id`,
		collection, filter)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", apperrors.MapDBError(err))
	}
	return collectDocuments(rows)
}

func encodeBody(collection, id string, fields map[string]any) ([]byte, error) {
	if collection == "" || id == "" {
		return nil, apperrors.Validation("collection and id are required")
	}
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "createdAt" || k == "updatedAt" {
			continue
		}
		clean[k] = v
	}
	body, err := json.Marshal(clean)
	if err != nil {
		return nil, apperrors.Validationf("encode document: %v", err)
	}
	return body, nil
}

func collectDocuments(rows pgx.Rows) ([]ports.Document, error) {
	defer rows.Close()
	var docs []ports.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", apperrors.MapDBError(err))
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (ports.Document, error) {
	var (
		doc  ports.Document
		body []byte
		c, u time.Time
	)
	if err := row.Scan(&doc.ID, &body, &c, &u); err != nil {
		return ports.Document{}, err
	}
	doc.Fields = map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc.Fields); err != nil {
			return ports.Document{}, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
	}
	doc.CreatedAt = c.UTC()
	doc.UpdatedAt = u.UTC()
	return doc, nil
}
