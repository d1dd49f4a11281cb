package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jsvoboda/memorymap/internal/store"
)

// ProfileRepository stores the singleton profile document as a JSONB row.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a PostgreSQL profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetProfile returns the profile document, or store.ErrNotFound when the map
// has never been configured.
func (r *ProfileRepository) GetProfile(ctx context.Context) (*store.Profile, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, "SELECT doc FROM profile WHERE id = 1").Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	var p store.Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}
	return &p, nil
}

// SaveProfile overwrites the whole document. Trip mutations always go through
// here with the full trip set.
func (r *ProfileRepository) SaveProfile(ctx context.Context, p *store.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile document: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO profile (id, doc)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			updated_at = NOW()
	`, doc)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

var _ store.ProfileRepository = (*ProfileRepository)(nil)
