package http

import (
	"net/http"

	applog "household/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err, nil)
		return
	}
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, toCategoryView(c))
	}
	NewJSONResponse().Body(views).Write(w)
}

// handleCreateCategory adds a category. Body: name, icon (optional).
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err, nil)
		return
	}
	name, icon := body.Get("name"), body.Get("icon")
	if err := s.svc.AddCategory(r.Context(), name, icon); err != nil {
		s.writeError(w, r, applog.OpCreate, err, applog.LogFields{applog.FieldCategory: name})
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]string{"name": name, "icon": icon}).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	if err := s.svc.DeleteCategory(r.Context(), name); err != nil {
		s.writeError(w, r, applog.OpDelete, err, applog.LogFields{applog.FieldCategory: name})
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
