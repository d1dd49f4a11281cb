package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jsvoboda/memorymap/internal/store"
)

// MembersHandler serves family member CRUD.
type MembersHandler struct {
	members store.MemberRepository
	log     *zap.Logger
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(members store.MemberRepository, logger *zap.Logger) *MembersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembersHandler{members: members, log: logger}
}

type memberRequest struct {
	Name string `json:"name"`
}

// foldName lowercases a name and strips diacritics, so "René" and "rene"
// count as the same person.
func foldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(folded)
}

// findDuplicateName reports whether another member already carries the name.
func (h *MembersHandler) findDuplicateName(r *http.Request, name, excludeID string) (bool, error) {
	members, err := h.members.ListMembers(r.Context())
	if err != nil {
		return false, err
	}
	folded := foldName(name)
	for _, m := range members {
		if m.ID != excludeID && foldName(m.Name) == folded {
			return true, nil
		}
	}
	return false, nil
}

// List returns all members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListMembers(r.Context())
	if err != nil {
		h.log.Error("listing members failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []store.FamilyMember{}
	}
	respondJSON(w, http.StatusOK, members)
}

// Get returns one member.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.members.GetMember(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.log.Error("loading member failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load member")
		return
	}
	respondJSON(w, http.StatusOK, member)
}

// Create adds a new member.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	duplicate, err := h.findDuplicateName(r, req.Name, "")
	if err != nil {
		h.log.Error("checking member names failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create member")
		return
	}
	if duplicate {
		respondError(w, http.StatusConflict, "member with this name already exists")
		return
	}

	member := &store.FamilyMember{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.members.InsertMember(r.Context(), member); err != nil {
		h.log.Error("creating member failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create member")
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

// Update renames a member. The descriptor document is untouched.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	member, err := h.members.GetMember(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load member")
		return
	}

	duplicate, err := h.findDuplicateName(r, req.Name, member.ID)
	if err != nil {
		h.log.Error("checking member names failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	if duplicate {
		respondError(w, http.StatusConflict, "member with this name already exists")
		return
	}

	member.Name = req.Name
	if err := h.members.UpdateMember(r.Context(), member); err != nil {
		h.log.Error("updating member failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	respondJSON(w, http.StatusOK, member)
}

// Delete removes a member. Face assignments pointing at the member are left
// in place; photo tags are repaired lazily by the reconcile pass.
func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.members.DeleteMember(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.log.Error("deleting member failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete member")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
