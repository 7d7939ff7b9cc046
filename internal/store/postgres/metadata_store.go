package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a primary key conflict.
const uniqueViolation = "23505"

// MetadataStore implements domain.MetadataStore using PostgreSQL.
type MetadataStore struct {
	pool *pgxpool.Pool
}

// NewMetadataStore creates a MetadataStore backed by the given pool.
func NewMetadataStore(pool *pgxpool.Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// Insert writes one metadata record. Records are write-once per market id;
// a second insert for the same id returns domain.ErrAlreadyExists.
func (s *MetadataStore) Insert(ctx context.Context, md domain.MarketMetadata) (domain.MarketMetadata, error) {
	const query = `
		INSERT INTO market_metadata (
			market_id, description, image_url, proposer_address, tag, created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	imageURL := md.ImageURL
	if imageURL == "" {
		imageURL = domain.DefaultImageURL
	}

	err := s.pool.QueryRow(ctx, query,
		md.MarketID, md.Description, imageURL, md.ProposerAddress, string(md.Tag),
	).Scan(&md.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.MarketMetadata{}, fmt.Errorf("postgres: insert metadata %d: %w", md.MarketID, domain.ErrAlreadyExists)
		}
		return domain.MarketMetadata{}, fmt.Errorf("postgres: insert metadata %d: %w", md.MarketID, err)
	}

	md.ImageURL = imageURL
	return md, nil
}

// GetByMarketID returns the metadata for one market, or domain.ErrNotFound.
func (s *MetadataStore) GetByMarketID(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	const query = `
		SELECT market_id, description, image_url, proposer_address, tag, created_at
		FROM market_metadata
		WHERE market_id = $1`

	md, err := scanMetadata(s.pool.QueryRow(ctx, query, marketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketMetadata{}, fmt.Errorf("postgres: metadata %d: %w", marketID, domain.ErrNotFound)
		}
		return domain.MarketMetadata{}, fmt.Errorf("postgres: get metadata %d: %w", marketID, err)
	}
	return md, nil
}

// ListRecent returns the newest metadata records, most recent first.
func (s *MetadataStore) ListRecent(ctx context.Context, limit int) ([]domain.MarketMetadata, error) {
	const query = `
		SELECT market_id, description, image_url, proposer_address, tag, created_at
		FROM market_metadata
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent metadata: %w", err)
	}
	defer rows.Close()

	return collectMetadata(rows)
}

// ListByTag returns metadata records with the given tag, most recent first.
func (s *MetadataStore) ListByTag(ctx context.Context, tag domain.MarketTag, limit int) ([]domain.MarketMetadata, error) {
	const query = `
		SELECT market_id, description, image_url, proposer_address, tag, created_at
		FROM market_metadata
		WHERE LOWER(tag) = LOWER($1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, string(tag), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list metadata by tag %q: %w", tag, err)
	}
	defer rows.Close()

	return collectMetadata(rows)
}

func normalizeLimit(limit int) int {
	const defaultLimit = 100
	if limit <= 0 || limit > defaultLimit {
		return defaultLimit
	}
	return limit
}

func scanMetadata(row pgx.Row) (domain.MarketMetadata, error) {
	var md domain.MarketMetadata
	var tag string
	err := row.Scan(
		&md.MarketID, &md.Description, &md.ImageURL,
		&md.ProposerAddress, &tag, &md.CreatedAt,
	)
	md.Tag = domain.MarketTag(tag)
	return md, err
}

func collectMetadata(rows pgx.Rows) ([]domain.MarketMetadata, error) {
	var out []domain.MarketMetadata
	for rows.Next() {
		md, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan metadata row: %w", err)
		}
		out = append(out, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate metadata rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.MetadataStore = (*MetadataStore)(nil)
