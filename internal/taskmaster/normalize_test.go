package taskmaster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizeString(t *testing.T, s string) *TaskList {
	t.Helper()
	tl, err := NormalizeJSON([]byte(s))
	require.NoError(t, err)
	return tl
}

func TestParseDocument_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "flat list", input: `[{"id":1}]`, want: FlatList{}},
		{name: "tasks field", input: `{"tasks":[{"id":1}]}`, want: TasksField{}},
		{name: "tagged map", input: `{"master":{"tasks":[]}}`, want: TaggedMap{}},
		{name: "tasks field that is not a list", input: `{"tasks":{"id":1}}`, want: TaggedMap{}},
		{name: "scalar", input: `42`, want: TaggedMap{}},
		{name: "null", input: `null`, want: TaggedMap{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.input))
			require.NoError(t, err)
			assert.IsType(t, tt.want, doc)
		})
	}
}

func TestParseDocument_InvalidJSON(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":}`, `not json`} {
		_, err := ParseDocument([]byte(input))
		assert.ErrorIs(t, err, ErrInvalidJSON, input)
	}
}

func TestNormalize_EmptyList(t *testing.T) {
	tl := normalizeString(t, `[]`)
	assert.Empty(t, tl.Tasks)
	assert.NotNil(t, tl.Tasks)
	assert.Equal(t, DefaultTag, tl.CurrentTag)
	assert.Equal(t, map[string]int{}, tl.TasksByStatus)

	b, err := json.Marshal(tl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[],"currentTag":"master","tasksByStatus":{},"totalTasks":0,"availableTags":["master"]}`, string(b))
}

func TestNormalize_Defaults(t *testing.T) {
	tl := normalizeString(t, `{"tasks":[{"id":1,"title":"A"}]}`)
	require.Len(t, tl.Tasks, 1)
	task := tl.Tasks[0]
	assert.Equal(t, DefaultTag, tl.CurrentTag)
	assert.Equal(t, "1", task.ID.String())
	assert.Equal(t, "A", task.Title)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, []ID{}, task.Dependencies)
	assert.Equal(t, []Subtask{}, task.Subtasks)

	b, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1, "title": "A", "description": "", "details": "", "testStrategy": "",
		"status": "pending", "priority": "medium", "dependencies": [], "subtasks": []
	}`, string(b))
}

func TestNormalize_FieldDefaultsForOddRecords(t *testing.T) {
	tl := normalizeString(t, `[
		{"title": "", "status": 3, "dependencies": "1"},
		"not an object",
		{"id": "2.1", "dependencies": [1, "1.2", null, true],
		 "subtasks": [{"id": 1, "title": 7}, 5]}
	]`)
	require.Len(t, tl.Tasks, 3)

	assert.Equal(t, defaultTitle, tl.Tasks[0].Title)
	assert.Equal(t, StatusPending, tl.Tasks[0].Status)
	assert.Equal(t, []ID{}, tl.Tasks[0].Dependencies)
	assert.True(t, tl.Tasks[0].ID.IsZero())

	assert.Equal(t, defaultTitle, tl.Tasks[1].Title)
	assert.Equal(t, []Subtask{}, tl.Tasks[1].Subtasks)

	third := tl.Tasks[2]
	assert.Equal(t, StringID("2.1"), third.ID)
	assert.Equal(t, []ID{NumericID(1), StringID("1.2")}, third.Dependencies)
	require.Len(t, third.Subtasks, 2)
	assert.Equal(t, defaultTitle, third.Subtasks[0].Title)
	assert.Equal(t, defaultTitle, third.Subtasks[1].Title)

	b, err := json.Marshal(tl.Tasks[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":null`)
}

func TestNormalize_MasterWinsEvenWhenEmpty(t *testing.T) {
	tl := normalizeString(t, `{"featureX": {"tasks": [{"id": 2}]}, "master": {"tasks": []}}`)
	assert.Equal(t, "master", tl.CurrentTag)
	assert.Empty(t, tl.Tasks)
	assert.Equal(t, []string{"featureX", "master"}, tl.AvailableTags)
}

func TestNormalize_OnlyTag(t *testing.T) {
	tl := normalizeString(t, `{"onlyTag": {"tasks": [{"id": 5, "status": "done"}]}}`)
	assert.Equal(t, "onlyTag", tl.CurrentTag)
	require.Len(t, tl.Tasks, 1)
	assert.Equal(t, 1, tl.TasksByStatus[StatusDone])
	assert.Equal(t, 100, Completion(tl.TasksByStatus[StatusDone], tl.TotalTasks))
}

func TestNormalize_FirstTagInSourceOrder(t *testing.T) {
	// Keys chosen so that sorted and source order disagree.
	tl := normalizeString(t, `{"zeta": {"tasks": [{"id": 1}]}, "alpha": {"tasks": [{"id": 2}]}, "meta": {"x": 1}}`)
	assert.Equal(t, "zeta", tl.CurrentTag)
	assert.Equal(t, []string{"zeta", "alpha"}, tl.AvailableTags)
}

func TestNormalize_NoMatchingShape(t *testing.T) {
	for _, input := range []string{`{}`, `{"a": 1}`, `"str"`, `{"master": {"tasks": "nope"}}`} {
		tl := normalizeString(t, input)
		assert.Equal(t, DefaultTag, tl.CurrentTag, input)
		assert.Empty(t, tl.Tasks, input)
		assert.Equal(t, map[string]int{}, tl.TasksByStatus, input)
	}
}

func TestNormalize_UnknownStatusKept(t *testing.T) {
	tl := normalizeString(t, `[{"id":1,"status":"blocked"},{"id":2,"status":"done"},{"id":3}]`)
	assert.Equal(t, map[string]int{"blocked": 1, "done": 1, "pending": 1}, tl.TasksByStatus)
}

func TestNormalizeTag(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"master": {"tasks": [{"id": 1}]}, "feat": {"tasks": [{"id": 1}, {"id": 2}]}}`))
	require.NoError(t, err)

	assert.Equal(t, "feat", NormalizeTag(doc, "feat").CurrentTag)
	assert.Equal(t, 2, NormalizeTag(doc, "feat").TotalTasks)
	assert.Equal(t, "master", NormalizeTag(doc, "missing").CurrentTag)
	assert.Equal(t, "master", NormalizeTag(doc, "").CurrentTag)
}

func TestNormalize_Idempotent(t *testing.T) {
	input := []byte(`{"b": {"tasks": [{"id": "1", "status": "x", "subtasks": [{"id": 1}]}]}, "a": {"tasks": []}}`)
	first := normalizeString(t, string(input))
	second := normalizeString(t, string(input))

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	// Normalizing the normalized output is a fixed point.
	again := normalizeString(t, string(mustJSON(t, map[string]any{"tasks": first.Tasks})))
	assert.Equal(t, first.Tasks, again.Tasks)
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{done: 0, total: 0, want: 0},
		{done: 1, total: 1, want: 100},
		{done: 1, total: 3, want: 33},
		{done: 2, total: 3, want: 67},
		{done: 1, total: 8, want: 13},
		{done: 5, total: -1, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Completion(tt.done, tt.total), "%d/%d", tt.done, tt.total)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
