package taskmaster

import (
	"encoding/json"
	"math"
)

// TaskList is the canonical view of one tag of a task file.
type TaskList struct {
	Tasks         []Task         `json:"tasks"`
	CurrentTag    string         `json:"currentTag"`
	TasksByStatus map[string]int `json:"tasksByStatus"`
	TotalTasks    int            `json:"totalTasks"`
	AvailableTags []string       `json:"availableTags"`
}

// Normalize selects the active tag of doc and returns its tasks with every
// field defaulted. It never fails: a document without tasks yields an empty
// list on the master tag.
//
// The tag is chosen in this order: a flat list or a top-level tasks array is
// the master tag; otherwise a master tag, if present; otherwise the first tag
// in source order.
func Normalize(doc Document) *TaskList {
	tag := selectTag(doc)
	return buildTaskList(doc, tag)
}

// NormalizeTag is Normalize for an explicitly requested tag. An unknown tag
// falls back to Normalize.
func NormalizeTag(doc Document, name string) *TaskList {
	if name == "" {
		return Normalize(doc)
	}
	for _, t := range tagsOf(doc) {
		if t.Name == name {
			return buildTaskList(doc, t)
		}
	}
	return Normalize(doc)
}

// NormalizeJSON parses data and normalizes it.
func NormalizeJSON(data []byte) (*TaskList, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return Normalize(doc), nil
}

func selectTag(doc Document) Tag {
	switch d := doc.(type) {
	case FlatList:
		return Tag{Name: DefaultTag, Tasks: d.Tasks}
	case TasksField:
		return Tag{Name: DefaultTag, Tasks: d.Tasks}
	case TaggedMap:
		if t, ok := d.Lookup(DefaultTag); ok {
			return t
		}
		if len(d.Entries) > 0 {
			return d.Entries[0]
		}
	}
	return Tag{Name: DefaultTag}
}

func tagsOf(doc Document) []Tag {
	if doc == nil {
		return nil
	}
	return doc.Tags()
}

func buildTaskList(doc Document, tag Tag) *TaskList {
	tasks := NormalizeTasks(tag.Tasks)
	available := []string{}
	for _, t := range tagsOf(doc) {
		available = append(available, t.Name)
	}
	return &TaskList{
		Tasks:         tasks,
		CurrentTag:    tag.Name,
		TasksByStatus: CountByStatus(tasks),
		TotalTasks:    len(tasks),
		AvailableTags: available,
	}
}

// NormalizeTasks applies field defaults to every raw task record.
func NormalizeTasks(raws []json.RawMessage) []Task {
	tasks := make([]Task, 0, len(raws))
	for _, raw := range raws {
		tasks = append(tasks, normalizeTask(raw))
	}
	return tasks
}

// CountByStatus counts tasks by their literal status value.
func CountByStatus(tasks []Task) map[string]int {
	counts := map[string]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// Completion returns done/total as a rounded percentage, 0 when total is 0.
func Completion(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
