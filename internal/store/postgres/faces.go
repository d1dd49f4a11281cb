package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/jsvoboda/memorymap/internal/store"
)

// FaceRepository stores face detections as relational rows with pgvector
// descriptors. Similarity search runs through the database HNSW index.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

const faceColumns = `id, photo_id, bbox, thumbnail, descriptor,
	suggested_member_id, suggested_distance, assigned_member_id, created_at`

// GetFace retrieves a single detection.
func (r *FaceRepository) GetFace(ctx context.Context, id string) (*store.DetectedFace, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+faceColumns+`
		FROM detected_faces
		WHERE id = $1
	`, id)

	face, err := scanFaceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &face, nil
}

// GetFacesByPhoto returns all detections for a photo in creation order.
func (r *FaceRepository) GetFacesByPhoto(ctx context.Context, photoID string) ([]store.DetectedFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`
		FROM detected_faces
		WHERE photo_id = $1
		ORDER BY created_at, id
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query faces by photo: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// GetAllFaces returns every stored detection. Used to warm the in-memory
// descriptor index at startup.
func (r *FaceRepository) GetAllFaces(ctx context.Context) ([]store.DetectedFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`
		FROM detected_faces
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query all faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// FindSimilar returns up to limit detections nearest to the descriptor by
// euclidean distance, nearest first.
func (r *FaceRepository) FindSimilar(
	ctx context.Context, descriptor []float32, limit int,
) ([]store.DetectedFace, []float64, error) {
	vec := pgvector.NewVector(descriptor)
	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`,
		       descriptor <-> $1::vector AS distance
		FROM detected_faces
		WHERE descriptor IS NOT NULL
		ORDER BY distance
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	var faces []store.DetectedFace
	var distances []float64
	for rows.Next() {
		var dist float64
		face, err := scanFaceRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		faces = append(faces, face)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar faces: %w", err)
	}
	return faces, distances, nil
}

// InsertFaces stores detections for a photo.
func (r *FaceRepository) InsertFaces(ctx context.Context, faces []store.DetectedFace) error {
	if len(faces) == 0 {
		return nil
	}

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detected_faces
			(id, photo_id, bbox, thumbnail, descriptor,
			 suggested_member_id, suggested_distance, assigned_member_id, created_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range faces {
		f := &faces[i]
		if _, err := stmt.ExecContext(ctx,
			f.ID,
			f.PhotoID,
			pq.Array(f.BBox),
			f.Thumbnail,
			pgvector.NewVector(f.Descriptor),
			nullString(f.SuggestedMemberID),
			nullFloat(f.SuggestedDistance),
			nullString(f.AssignedMemberID),
			f.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert face %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateFaceAssignment sets the confirmed identity of a detection. An empty
// memberID clears the assignment.
func (r *FaceRepository) UpdateFaceAssignment(ctx context.Context, faceID, memberID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE detected_faces SET assigned_member_id = $2
		WHERE id = $1
	`, faceID, nullString(memberID))
	if err != nil {
		return fmt.Errorf("update face assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearAssignmentsByMember clears assignments to a member on one photo.
func (r *FaceRepository) ClearAssignmentsByMember(ctx context.Context, photoID, memberID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE detected_faces SET assigned_member_id = NULL
		WHERE photo_id = $1 AND assigned_member_id = $2
	`, photoID, memberID)
	if err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	return nil
}

// DeleteFacesByPhoto removes all detections of a photo and returns the
// deleted face IDs for index cleanup.
func (r *FaceRepository) DeleteFacesByPhoto(ctx context.Context, photoID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM detected_faces WHERE photo_id = $1
		RETURNING id
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("delete faces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted face ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted face IDs: %w", err)
	}
	return ids, nil
}

// scanFaceRow scans a single row into a DetectedFace, with optional extra
// scan destinations appended after the face columns (e.g. a distance column).
func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (store.DetectedFace, error) {
	var face store.DetectedFace
	var bbox pq.Float64Array
	var vec pgvector.Vector
	var suggested, assigned sql.NullString
	var suggestedDist sql.NullFloat64

	dest := make([]any, 0, 9+len(extraDest))
	dest = append(dest,
		&face.ID,
		&face.PhotoID,
		&bbox,
		&face.Thumbnail,
		&vec,
		&suggested,
		&suggestedDist,
		&assigned,
		&face.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return face, err
		}
		return face, fmt.Errorf("scan face: %w", err)
	}

	face.BBox = []float64(bbox)
	face.Descriptor = vec.Slice()
	if suggested.Valid {
		face.SuggestedMemberID = suggested.String
	}
	if suggestedDist.Valid {
		face.SuggestedDistance = suggestedDist.Float64
	}
	if assigned.Valid {
		face.AssignedMemberID = assigned.String
	}
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]store.DetectedFace, error) {
	var faces []store.DetectedFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

var _ store.FaceReader = (*FaceRepository)(nil)
var _ store.FaceWriter = (*FaceRepository)(nil)
