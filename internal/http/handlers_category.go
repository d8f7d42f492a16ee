package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
)

type categoryResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCategoryResponse(c *core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		Color:     c.Color,
		Icon:      c.Icon,
		Archived:  c.Archived,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type categoryListResponse struct {
	Categories []categoryResponse `json:"categories"`
	Page       core.PageInfo      `json:"page"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	category, err := s.categories.Create(r.Context(), principal.UserID, req.toCore())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toCategoryResponse(category))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	category, err := s.categories.Get(r.Context(), principal.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	categories, page, err := s.categories.List(r.Context(), principal.UserID, parseCategoryFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := categoryListResponse{
		Categories: make([]categoryResponse, len(categories)),
		Page:       page,
	}
	for i := range categories {
		resp.Categories[i] = toCategoryResponse(&categories[i])
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req categoryPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	category, err := s.categories.Update(r.Context(), principal.UserID, id, req.toPatch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCategoryResponse(category))
}

func (s *Server) handleArchiveCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	principal := principalFrom(r.Context())
	if err := s.categories.Archive(r.Context(), principal.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"archived": true})
}
