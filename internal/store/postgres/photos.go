package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jsvoboda/memorymap/internal/store"
)

// PhotoRepository stores photo metadata as JSONB documents. The country code
// and creation time are mirrored into columns for indexing; the document is
// the source of truth for everything else.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a PostgreSQL photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// GetPhoto retrieves a photo by ID.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id string) (*store.Photo, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, "SELECT doc FROM photos WHERE id = $1", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	return decodePhotoDoc(doc)
}

// ListPhotosByCountry returns all photos for a country, newest first.
func (r *PhotoRepository) ListPhotosByCountry(ctx context.Context, countryCode string) ([]store.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doc FROM photos
		WHERE country_code = $1
		ORDER BY created_at DESC
	`, strings.ToUpper(countryCode))
	if err != nil {
		return nil, fmt.Errorf("query photos by country: %w", err)
	}
	defer rows.Close()

	return scanPhotos(rows)
}

// ListPhotos returns all photos, newest first.
func (r *PhotoRepository) ListPhotos(ctx context.Context) ([]store.Photo, error) {
	rows, err := r.pool.Query(ctx, "SELECT doc FROM photos ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	return scanPhotos(rows)
}

// CountPhotos returns the total number of photo documents.
func (r *PhotoRepository) CountPhotos(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// InsertPhoto stores a new photo document.
func (r *PhotoRepository) InsertPhoto(ctx context.Context, p *store.Photo) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode photo document: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO photos (id, country_code, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, strings.ToUpper(p.CountryCode), doc, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// UpdatePhoto overwrites an individual photo document.
func (r *PhotoRepository) UpdatePhoto(ctx context.Context, p *store.Photo) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode photo document: %w", err)
	}

	res, err := r.pool.Exec(ctx, `
		UPDATE photos SET doc = $2, country_code = $3
		WHERE id = $1
	`, p.ID, doc, strings.ToUpper(p.CountryCode))
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeletePhoto removes a photo document. Face rows are cleaned up separately.
func (r *PhotoRepository) DeletePhoto(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, "DELETE FROM photos WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func decodePhotoDoc(doc []byte) (*store.Photo, error) {
	var p store.Photo
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode photo document: %w", err)
	}
	return &p, nil
}

func scanPhotos(rows *sql.Rows) ([]store.Photo, error) {
	var photos []store.Photo
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		p, err := decodePhotoDoc(doc)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

var _ store.PhotoWriter = (*PhotoRepository)(nil)
