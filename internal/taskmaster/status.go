package taskmaster

import "time"

// Status is the coarse configuration state of a project.
type Status string

const (
	StatusFullyConfigured Status = "fully-configured"
	StatusTaskmasterOnly  Status = "taskmaster-only"
	StatusMCPOnly         Status = "mcp-only"
	StatusNotConfigured   Status = "not-configured"
)

// Reconcile combines the two independently detected facts into a Status.
func Reconcile(taskmasterPresent, mcpConfigured bool) Status {
	switch {
	case taskmasterPresent && mcpConfigured:
		return StatusFullyConfigured
	case taskmasterPresent:
		return StatusTaskmasterOnly
	case mcpConfigured:
		return StatusMCPOnly
	default:
		return StatusNotConfigured
	}
}

// Metadata aggregates the tasks of a task file for display.
type Metadata struct {
	TaskCount            int            `json:"taskCount"`
	SubtaskCount         int            `json:"subtaskCount"`
	Completed            int            `json:"completed"`
	Pending              int            `json:"pending"`
	InProgress           int            `json:"inProgress"`
	Review               int            `json:"review"`
	ByStatus             map[string]int `json:"byStatus"`
	CompletionPercentage int            `json:"completionPercentage"`
	LastModified         *time.Time     `json:"lastModified,omitempty"`
	Error                string         `json:"error,omitempty"`
}

// Summarize counts tasks and their subtasks. Subtasks are counted but do
// not contribute to the status buckets.
func Summarize(tasks []Task) *Metadata {
	byStatus := CountByStatus(tasks)
	m := &Metadata{
		TaskCount:            len(tasks),
		Completed:            byStatus[StatusDone],
		Pending:              byStatus[StatusPending],
		InProgress:           byStatus[StatusInProgress],
		Review:               byStatus[StatusReview],
		ByStatus:             byStatus,
		CompletionPercentage: Completion(byStatus[StatusDone], len(tasks)),
	}
	for _, t := range tasks {
		m.SubtaskCount += len(t.Subtasks)
	}
	return m
}

// SummarizeDocument summarizes the tasks of every tag in doc.
func SummarizeDocument(doc Document) *Metadata {
	var tasks []Task
	for _, tag := range tagsOf(doc) {
		tasks = append(tasks, NormalizeTasks(tag.Tasks)...)
	}
	return Summarize(tasks)
}

// ProjectStatus is recomputed on every request and never persisted.
type ProjectStatus struct {
	ProjectName string           `json:"projectName"`
	ProjectPath string           `json:"projectPath"`
	Status      Status           `json:"status"`
	Taskmaster  *FolderDetection `json:"taskmaster"`
	MCP         *MCPDetection    `json:"mcp"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewProjectStatus reconciles the folder and MCP detections of a project.
func NewProjectStatus(name, path string, folder *FolderDetection, mcp *MCPDetection, now time.Time) *ProjectStatus {
	return &ProjectStatus{
		ProjectName: name,
		ProjectPath: path,
		Status:      Reconcile(folder.Present(), mcp.Configured()),
		Taskmaster:  folder,
		MCP:         mcp,
		Timestamp:   now,
	}
}
