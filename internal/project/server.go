package project

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/pkg/cerr"
)

type Server struct {
	repo     Repository
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, eventBus *eventbus.Bus) *Server {
	return &Server{repo: repo, eventBus: eventBus}
}

// Routes mounts the project CRUD endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.ListProjects)
	r.Post("/", s.CreateProject)
	r.Get("/{id}", s.GetProject)
	r.Put("/{id}", s.UpdateProject)
	r.Delete("/{id}", s.DeleteProject)
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Path        string `json:"path"`
}

type UpdateProjectRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Path        string `json:"path"`
}

type ProjectResponse struct {
	Project *Project `json:"project"`
}

type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListProjectsResponse struct {
	Projects   []*Project  `json:"projects"`
	Pagination *Pagination `json:"pagination"`
}

func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateProjectRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := ValidateName(req.Name); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), nil)
		return
	}
	path, err := ValidatePath(req.Path)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), err)
		return
	}
	now := time.Now()
	p := &Project{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Path:        path,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publish(p, "created")
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, &ProjectResponse{Project: p})
}

func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ProjectResponse{Project: p})
}

func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	projects, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ListProjectsResponse{
		Projects: projects,
		Pagination: &Pagination{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpdateProjectRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	p, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name != "" {
		if err := ValidateName(req.Name); err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), nil)
			return
		}
		p.Name = req.Name
	}
	if req.DisplayName != "" {
		p.DisplayName = req.DisplayName
	}
	if req.Path != "" {
		path, err := ValidatePath(req.Path)
		if err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), err)
			return
		}
		p.Path = path
	}
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publish(p, "updated")
	cerr.SetJSONResponse(ctx, &ProjectResponse{Project: p})
}

func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publish(p, "deleted")
	cerr.SetJSONResponse(ctx, struct{}{})
}

func (s *Server) publish(p *Project, action string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishNew(eventbus.TypeProjectsUpdated, "", nil, map[string]string{
		"action":     action,
		"project_id": p.ID,
		"name":       p.Name,
	})
}
