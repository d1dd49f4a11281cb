package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jsvoboda/memorymap/internal/store"
)

// MemberRepository stores family members. The name is a column for listing;
// the descriptor document is opaque JSONB.
type MemberRepository struct {
	pool *Pool
}

// NewMemberRepository creates a PostgreSQL member repository.
func NewMemberRepository(pool *Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// GetMember retrieves a member by ID.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (*store.FamilyMember, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, doc, created_at FROM family_members WHERE id = $1
	`, id)

	m, err := scanMemberRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns all members ordered by creation time.
func (r *MemberRepository) ListMembers(ctx context.Context) ([]store.FamilyMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, doc, created_at FROM family_members
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []store.FamilyMember
	for rows.Next() {
		m, err := scanMemberRow(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// InsertMember stores a new member.
func (r *MemberRepository) InsertMember(ctx context.Context, m *store.FamilyMember) error {
	doc, err := encodeMemberDoc(m.Doc)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO family_members (id, name, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.Name, doc, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// UpdateMember overwrites a member's name and descriptor document.
func (r *MemberRepository) UpdateMember(ctx context.Context, m *store.FamilyMember) error {
	doc, err := encodeMemberDoc(m.Doc)
	if err != nil {
		return err
	}

	res, err := r.pool.Exec(ctx, `
		UPDATE family_members SET name = $2, doc = $3
		WHERE id = $1
	`, m.ID, m.Name, doc)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteMember removes a member. Face rows pointing at it are left as is.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, "DELETE FROM family_members WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeMemberDoc(doc map[string]any) ([]byte, error) {
	// The Absent sentinel marshals as an empty object, so it must be
	// stripped before the document hits JSONB.
	doc = store.SanitizeMap(doc)
	if doc == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode member document: %w", err)
	}
	return data, nil
}

func scanMemberRow(scanner interface{ Scan(...any) error }) (store.FamilyMember, error) {
	var m store.FamilyMember
	var doc []byte

	if err := scanner.Scan(&m.ID, &m.Name, &doc, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("scan member: %w", err)
	}

	if err := json.Unmarshal(doc, &m.Doc); err != nil {
		return m, fmt.Errorf("decode member document: %w", err)
	}
	return m, nil
}

var _ store.MemberRepository = (*MemberRepository)(nil)
