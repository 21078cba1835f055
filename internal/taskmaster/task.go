package taskmaster

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusDeferred   = "deferred"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultTag is the tag the CLI writes to when no other tag is selected.
const DefaultTag = "master"

const defaultTitle = "Untitled Task"

// TaskStatuses lists the statuses the CLI knows about, in board column order.
var TaskStatuses = []string{
	StatusPending,
	StatusInProgress,
	StatusReview,
	StatusDone,
	StatusDeferred,
	StatusCancelled,
}

// ValidStatus reports whether s is one of TaskStatuses.
func ValidStatus(s string) bool {
	for _, st := range TaskStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ID is a task identifier as written by the CLI: either a JSON number (1)
// or a dotted string ("3.2"). The source representation is kept so that
// serializing a normalized task reproduces the original form.
type ID struct {
	text    string
	numeric bool
}

func NumericID(n int) ID {
	return ID{text: strconv.Itoa(n), numeric: true}
}

func StringID(s string) ID {
	return ID{text: s}
}

// IsZero reports whether the id was absent in the source record.
func (id ID) IsZero() bool {
	return id.text == "" && !id.numeric
}

func (id ID) String() string {
	return id.text
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.IsZero():
		return []byte("null"), nil
	case id.numeric:
		return []byte(id.text), nil
	default:
		return json.Marshal(id.text)
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	parsed, _ := parseID(data)
	*id = parsed
	return nil
}

// parseID accepts a JSON number or string; anything else yields the zero ID.
func parseID(raw json.RawMessage) (ID, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ID{}, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return ID{}, false
		}
		return ID{text: s}, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ID{}, false
		}
		return ID{text: n.String(), numeric: true}, true
	}
	return ID{}, false
}

// Subtask is a task nested under a parent. Subtasks do not nest further.
type Subtask struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Details      string `json:"details"`
	TestStrategy string `json:"testStrategy"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Dependencies []ID   `json:"dependencies"`
}

// Task is one record of the CLI's task file with every field defaulted.
type Task struct {
	ID           ID        `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Details      string    `json:"details"`
	TestStrategy string    `json:"testStrategy"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Dependencies []ID      `json:"dependencies"`
	Subtasks     []Subtask `json:"subtasks"`
}

// record is a tolerant view over one raw task object. Members with an
// unexpected JSON type are treated as absent.
type record map[string]json.RawMessage

func decodeRecord(raw json.RawMessage) record {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return record{}
	}
	return r
}

func (r record) str(key, def string) string {
	raw, ok := r[key]
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return def
	}
	return s
}

func (r record) id() ID {
	id, _ := parseID(r["id"])
	return id
}

func (r record) ids(key string) []ID {
	ids := []ID{}
	var raws []json.RawMessage
	if err := json.Unmarshal(r[key], &raws); err != nil {
		return ids
	}
	for _, raw := range raws {
		if id, ok := parseID(raw); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r record) list(key string) []json.RawMessage {
	raws, _ := asList(r[key])
	return raws
}

func normalizeSubtask(raw json.RawMessage) Subtask {
	r := decodeRecord(raw)
	return Subtask{
		ID:           r.id(),
		Title:        r.str("title", defaultTitle),
		Description:  r.str("description", ""),
		Details:      r.str("details", ""),
		TestStrategy: r.str("testStrategy", ""),
		Status:       r.str("status", StatusPending),
		Priority:     r.str("priority", PriorityMedium),
		Dependencies: r.ids("dependencies"),
	}
}

func normalizeTask(raw json.RawMessage) Task {
	r := decodeRecord(raw)
	t := Task{
		ID:           r.id(),
		Title:        r.str("title", defaultTitle),
		Description:  r.str("description", ""),
		Details:      r.str("details", ""),
		TestStrategy: r.str("testStrategy", ""),
		Status:       r.str("status", StatusPending),
		Priority:     r.str("priority", PriorityMedium),
		Dependencies: r.ids("dependencies"),
		Subtasks:     []Subtask{},
	}
	for _, sub := range r.list("subtasks") {
		t.Subtasks = append(t.Subtasks, normalizeSubtask(sub))
	}
	return t
}
