package taskmaster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	"github.com/kazz187/tmdash/internal/tmcli"
	"github.com/kazz187/tmdash/pkg/cerr"
	"github.com/kazz187/tmdash/pkg/clog"
)

type Server struct {
	repo      project.Repository
	inspector *Inspector
	cli       *tmcli.Client
	templates *TemplateLibrary
	eventBus  *eventbus.Bus
}

func NewServer(repo project.Repository, inspector *Inspector, cli *tmcli.Client, templates *TemplateLibrary, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:      repo,
		inspector: inspector,
		cli:       cli,
		templates: templates,
		eventBus:  eventBus,
	}
}

// Routes mounts the TaskMaster endpoints on r. Projects are addressed by
// name.
func (s *Server) Routes(r chi.Router) {
	r.Get("/installation-status", s.GetInstallationStatus)
	r.Get("/mcp-status", s.GetMCPStatus)
	r.Get("/mcp-servers", s.ListMCPServers)
	r.Get("/detect-all", s.DetectAll)
	r.Get("/detect/{project}", s.Detect)
	r.Get("/tasks/{project}", s.GetTasks)
	r.Get("/next/{project}", s.GetNextTask)

	r.Get("/prd/{project}", s.ListPRDs)
	r.Post("/prd/{project}", s.SavePRD)
	r.Get("/prd/{project}/{file}", s.GetPRD)
	r.Delete("/prd/{project}/{file}", s.DeletePRD)

	r.Post("/init/{project}", s.InitProject)
	r.Post("/add-task/{project}", s.AddTask)
	r.Post("/parse-prd/{project}", s.ParsePRD)
	r.Put("/update-task/{project}/{taskId}", s.UpdateTask)

	r.Get("/prd-templates", s.ListTemplates)
	r.Post("/apply-template/{project}", s.ApplyTemplate)
}

type MCPStatusResponse struct {
	MCP               *MCPDetection                         `json:"mcp"`
	RecommendedConfig map[string]map[string]MCPServerConfig `json:"recommendedConfig"`
}

type DetectAllResponse struct {
	Projects []*ProjectStatus `json:"projects"`
	Summary  map[Status]int   `json:"summary"`
}

type TasksResponse struct {
	ProjectName string `json:"projectName"`
	*TaskList
}

type NextTaskResponse struct {
	// NextTask is always selected from tasks.json.
	NextTask *NextTask `json:"nextTask"`
	// CLIOutput is the stdout of `task-master next`, empty when the CLI
	// could not be run.
	CLIOutput string `json:"cliOutput,omitempty"`
}

type PRDListResponse struct {
	Files []*PRDFile `json:"files"`
}

type SavePRDRequest struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

type CommandResponse struct {
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Output     string `json:"output"`
	Stderr     string `json:"stderr,omitempty"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
}

type UpdateTaskRequest struct {
	Status       string   `json:"status"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Details      string   `json:"details"`
	Priority     string   `json:"priority"`
	Dependencies []string `json:"dependencies"`
	TestStrategy string   `json:"testStrategy"`
	Prompt       string   `json:"prompt"`
	Research     bool     `json:"research"`
}

type UpdateTaskResponse struct {
	TaskID    string           `json:"taskId"`
	SetStatus *CommandResponse `json:"setStatus,omitempty"`
	Update    *CommandResponse `json:"update,omitempty"`
	// Error is set when the status was changed but the update failed.
	Error string `json:"error,omitempty"`
}

type TemplatesResponse struct {
	Templates []*Template `json:"templates"`
}

type ApplyTemplateRequest struct {
	TemplateID string            `json:"templateId"`
	FileName   string            `json:"fileName"`
	Values     map[string]string `json:"values"`
	Overwrite  bool              `json:"overwrite"`
}

func (s *Server) GetInstallationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cerr.SetJSONResponse(ctx, s.cli.Installation(ctx))
}

func (s *Server) GetMCPStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectPath := ""
	if name := r.URL.Query().Get("project"); name != "" {
		p, err := s.findProject(ctx, name)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		projectPath = p.Path
	}
	cerr.SetJSONResponse(ctx, &MCPStatusResponse{
		MCP:               s.inspector.MCP().Detect(projectPath),
		RecommendedConfig: RecommendedConfig(),
	})
}

func (s *Server) ListMCPServers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectPath := ""
	if name := r.URL.Query().Get("project"); name != "" {
		p, err := s.findProject(ctx, name)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		projectPath = p.Path
	}
	cerr.SetJSONResponse(ctx, s.inspector.MCP().ListServers(projectPath))
}

func (s *Server) DetectAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, _, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	statuses := s.inspector.InspectAll(ctx, Targets(projects))
	summary := map[Status]int{}
	for _, st := range statuses {
		summary[st.Status]++
	}
	cerr.SetJSONResponse(ctx, &DetectAllResponse{Projects: statuses, Summary: summary})
}

func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, s.inspector.Inspect(ctx, TargetOf(p)))
}

func (s *Server) GetTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	doc, err := LoadDocument(p.Path)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "failed to parse tasks.json", err)
		return
	}
	cerr.SetJSONResponse(ctx, &TasksResponse{
		ProjectName: p.Name,
		TaskList:    NormalizeTag(doc, r.URL.Query().Get("tag")),
	})
}

// GetNextTask selects the next task from tasks.json and attaches the output
// of `task-master next` when the CLI runs.
func (s *Server) GetNextTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	doc, err := LoadDocument(p.Path)
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "failed to parse tasks.json", err)
		return
	}
	next := FindNextTask(NormalizeTag(doc, r.URL.Query().Get("tag")).Tasks)

	resp := &NextTaskResponse{NextTask: next}
	if res, err := s.cli.Next(ctx, p.Path); err != nil {
		clog.AddError(ctx, err)
	} else {
		resp.CLIOutput = res.Stdout
	}
	cerr.SetJSONResponse(ctx, resp)
}

func (s *Server) ListPRDs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, err := s.prdStore(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	files, err := store.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &PRDListResponse{Files: files})
}

func (s *Server) SavePRD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SavePRDRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	store, err := s.prdStore(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := store.Write(ctx, req.FileName, req.Content)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	action := "updated"
	status := http.StatusOK
	if res.Created {
		action = "created"
		status = http.StatusCreated
	}
	s.publishPRD(chi.URLParam(r, "project"), res.Name, action)
	cerr.SetJSONResponseWithStatus(ctx, status, res)
}

func (s *Server) GetPRD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, err := s.prdStore(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	doc, err := store.Read(ctx, chi.URLParam(r, "file"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, doc)
}

func (s *Server) DeletePRD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, err := s.prdStore(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	name := chi.URLParam(r, "file")
	if err := store.Delete(ctx, name); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publishPRD(chi.URLParam(r, "project"), name, "deleted")
	cerr.SetJSONResponse(ctx, struct{}{})
}

func (s *Server) InitProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	before := s.inspector.Inspect(ctx, TargetOf(p))
	res, err := s.cli.Init(ctx, p.Path)
	s.publishCommand(p.Name, "init", res)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	after := s.inspector.Inspect(ctx, TargetOf(p))
	s.publish(eventbus.TypeProjectUpdated, p.Name, after, map[string]string{
		"previous_status": string(before.Status),
		"status":          string(after.Status),
	})
	cerr.SetJSONResponse(ctx, commandResponse(res))
}

func (s *Server) AddTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req tmcli.AddTaskOptions
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Priority != "" && !ValidPriority(req.Priority) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid priority %q", req.Priority), nil)
		return
	}
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.cli.AddTask(ctx, p.Path, req)
	s.publishCommand(p.Name, "add-task", res)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publishTasksUpdated(p.Name, "add-task")
	cerr.SetJSONResponse(ctx, commandResponse(res))
}

func (s *Server) ParsePRD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req tmcli.ParsePRDOptions
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !ValidPRDName(req.File) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid PRD file name", nil)
		return
	}
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	store, err := openPRDStore(p)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	exists, err := store.Exists(ctx, req.File)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !exists {
		cerr.SetNewJSONError(ctx, cerr.NotFound, fmt.Sprintf("PRD file %q not found", req.File), nil)
		return
	}
	req.File = path.Join(FolderName, DocsDir, req.File)
	res, err := s.cli.ParsePRD(ctx, p.Path, req)
	s.publishCommand(p.Name, "parse-prd", res)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publishTasksUpdated(p.Name, "parse-prd")
	cerr.SetJSONResponse(ctx, commandResponse(res))
}

// UpdateTask changes a task's status through set-status. Any other field is
// turned into a prompt for update-task.
func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpdateTaskRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Status != "" && !ValidStatus(req.Status) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid status %q", req.Status), nil)
		return
	}
	if req.Priority != "" && !ValidPriority(req.Priority) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("invalid priority %q", req.Priority), nil)
		return
	}
	prompt := req.updatePrompt()
	if req.Status == "" && prompt == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "no changes requested", nil)
		return
	}
	p, err := s.projectFromPath(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	taskID := chi.URLParam(r, "taskId")
	resp := &UpdateTaskResponse{TaskID: taskID}

	if req.Status != "" {
		res, err := s.cli.SetStatus(ctx, p.Path, taskID, req.Status)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		resp.SetStatus = commandResponse(res)
		s.publishTasksUpdated(p.Name, "set-status")
	}
	if prompt != "" {
		res, err := s.cli.UpdateTask(ctx, p.Path, taskID, prompt, req.Research)
		s.publishCommand(p.Name, "update-task", res)
		if err != nil {
			if resp.SetStatus == nil {
				cerr.SetJSONError(ctx, err)
				return
			}
			clog.AddError(ctx, err)
			if res != nil {
				resp.Update = commandResponse(res)
			}
			status, msg := partialFailure(err)
			resp.Error = msg
			cerr.SetJSONResponseWithStatus(ctx, status, resp)
			return
		}
		resp.Update = commandResponse(res)
		s.publishTasksUpdated(p.Name, "update-task")
	}
	cerr.SetJSONResponse(ctx, resp)
}

// updatePrompt describes every requested change except the status.
func (req *UpdateTaskRequest) updatePrompt() string {
	var changes []string
	add := func(field, value string) {
		if value != "" {
			changes = append(changes, fmt.Sprintf("set the %s to %q", field, value))
		}
	}
	add("title", req.Title)
	add("description", req.Description)
	add("details", req.Details)
	add("priority", req.Priority)
	add("test strategy", req.TestStrategy)
	if len(req.Dependencies) > 0 {
		changes = append(changes, "set the dependencies to "+strings.Join(req.Dependencies, ", "))
	}
	if req.Prompt != "" {
		changes = append(changes, req.Prompt)
	}
	if len(changes) == 0 {
		return ""
	}
	return "Update this task: " + strings.Join(changes, "; ") + "."
}

func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), &TemplatesResponse{Templates: s.templates.List()})
}

func (s *Server) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ApplyTemplateRequest
	if err := cerr.DecodeJSONBody(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tmpl, ok := s.templates.Get(req.TemplateID)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.NotFound, fmt.Sprintf("template %q not found", req.TemplateID), nil)
		return
	}
	store, err := s.prdStore(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.FileName == "" {
		req.FileName = tmpl.ID + ".txt"
	}
	if !req.Overwrite {
		exists, err := store.Exists(ctx, req.FileName)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		if exists {
			cerr.SetNewJSONError(ctx, cerr.AlreadyExists, fmt.Sprintf("PRD file %q already exists", req.FileName), nil)
			return
		}
	}
	res, err := store.Write(ctx, req.FileName, tmpl.Apply(req.Values))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	action := "updated"
	if res.Created {
		action = "created"
	}
	s.publishPRD(chi.URLParam(r, "project"), res.Name, action)
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, res)
}

func (s *Server) findProject(ctx context.Context, name string) (*project.Project, error) {
	p, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	clog.AddProject(ctx, p.Name)
	return p, nil
}

func (s *Server) projectFromPath(r *http.Request) (*project.Project, error) {
	return s.findProject(r.Context(), chi.URLParam(r, "project"))
}

func (s *Server) prdStore(r *http.Request) (*PRDStore, error) {
	p, err := s.projectFromPath(r)
	if err != nil {
		return nil, err
	}
	return openPRDStore(p)
}

func openPRDStore(p *project.Project) (*PRDStore, error) {
	store, err := NewPRDStore(p.Path)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to open PRD directory", err)
	}
	return store, nil
}

func (s *Server) publish(eventType eventbus.Type, projectName string, data any, metadata map[string]string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishNew(eventType, projectName, data, metadata)
}

func (s *Server) publishPRD(projectName, file, action string) {
	s.publish(eventbus.TypePRDUpdated, projectName, nil, map[string]string{
		"action": action,
		"file":   file,
	})
}

func (s *Server) publishTasksUpdated(projectName, command string) {
	s.publish(eventbus.TypeTasksUpdated, projectName, nil, map[string]string{"command": command})
}

// publishCommand reports a finished CLI run. Runs that never started are
// not reported.
func (s *Server) publishCommand(projectName, command string, res *tmcli.Result) {
	if res == nil {
		return
	}
	s.publish(eventbus.TypeCommandCompleted, projectName, commandResponse(res), map[string]string{
		"command":   command,
		"success":   strconv.FormatBool(res.Success),
		"exit_code": strconv.Itoa(res.ExitCode),
	})
}

// partialFailure maps err to the status and message of a response that
// still carries the steps already applied.
func partialFailure(err error) (int, string) {
	var e *cerr.Error
	if errors.As(err, &e) {
		return e.Code.HTTPCode(), e.Msg
	}
	return http.StatusInternalServerError, err.Error()
}

func commandResponse(res *tmcli.Result) *CommandResponse {
	return &CommandResponse{
		Success:    res.Success,
		Command:    res.Command,
		Output:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.DurationMs,
	}
}

// TargetOf returns the inspection target of a registered project.
func TargetOf(p *project.Project) Target {
	return Target{Name: p.Name, Path: p.Path}
}

func Targets(projects []*project.Project) []Target {
	out := make([]Target, 0, len(projects))
	for _, p := range projects {
		out = append(out, TargetOf(p))
	}
	return out
}
