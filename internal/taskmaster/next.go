package taskmaster

import (
	"sort"
	"strconv"
	"strings"
)

// NextTask is the task the CLI would suggest working on next.
type NextTask struct {
	ID           string `json:"id"`
	ParentID     string `json:"parentId,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Details      string `json:"details"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Dependencies []ID   `json:"dependencies"`
}

var priorityRank = map[string]int{
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// FindNextTask picks the next task from tasks. Subtasks of in-progress
// parents come first; otherwise the eligible top-level task with the highest
// priority, then the fewest dependencies, then the lowest id wins. A task is
// eligible when it is pending or in progress and all its dependencies are
// done. It returns nil when nothing is eligible.
func FindNextTask(tasks []Task) *NextTask {
	done := map[string]bool{}
	for _, t := range tasks {
		if t.Status == StatusDone {
			done[t.ID.String()] = true
		}
		for _, s := range t.Subtasks {
			if s.Status == StatusDone {
				done[subtaskKey(t.ID, s.ID)] = true
			}
		}
	}

	var candidates []*NextTask
	for _, t := range tasks {
		if t.Status != StatusInProgress {
			continue
		}
		for _, s := range t.Subtasks {
			if !actionable(s.Status) || !depsDone(s.Dependencies, done, t.ID) {
				continue
			}
			candidates = append(candidates, &NextTask{
				ID:           subtaskKey(t.ID, s.ID),
				ParentID:     t.ID.String(),
				Title:        s.Title,
				Description:  s.Description,
				Details:      s.Details,
				Status:       s.Status,
				Priority:     s.Priority,
				Dependencies: s.Dependencies,
			})
		}
	}
	if len(candidates) == 0 {
		for _, t := range tasks {
			if !actionable(t.Status) || !depsDone(t.Dependencies, done, ID{}) {
				continue
			}
			candidates = append(candidates, &NextTask{
				ID:           t.ID.String(),
				Title:        t.Title,
				Description:  t.Description,
				Details:      t.Details,
				Status:       t.Status,
				Priority:     t.Priority,
				Dependencies: t.Dependencies,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if pa, pb := priorityRank[a.Priority], priorityRank[b.Priority]; pa != pb {
			return pa > pb
		}
		if len(a.Dependencies) != len(b.Dependencies) {
			return len(a.Dependencies) < len(b.Dependencies)
		}
		return lessID(a.ID, b.ID)
	})
	return candidates[0]
}

func actionable(status string) bool {
	return status == StatusPending || status == StatusInProgress
}

// depsDone reports whether every dependency is done. Bare numeric
// dependencies of a subtask refer to siblings under parent.
func depsDone(deps []ID, done map[string]bool, parent ID) bool {
	for _, dep := range deps {
		key := dep.String()
		if !parent.IsZero() && !strings.Contains(key, ".") {
			key = subtaskKey(parent, dep)
		}
		if !done[key] {
			return false
		}
	}
	return true
}

func subtaskKey(parent, sub ID) string {
	if strings.Contains(sub.String(), ".") {
		return sub.String()
	}
	return parent.String() + "." + sub.String()
}

// lessID orders dotted ids segment by segment, numerically where possible.
func lessID(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
