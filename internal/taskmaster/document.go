package taskmaster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document is a parsed tasks.json in one of the shapes the CLI has written
// over time. It is one of FlatList, TasksField or TaggedMap.
type Document interface {
	// Tags returns every tag carried by the document in source order.
	Tags() []Tag
	isDocument()
}

// Tag is a named partition of tasks.
type Tag struct {
	Name  string
	Tasks []json.RawMessage
}

// FlatList is the legacy shape: the whole file is one task array.
type FlatList struct {
	Tasks []json.RawMessage
}

// TasksField is the single-object shape: {"tasks": [...]}.
type TasksField struct {
	Tasks []json.RawMessage
}

// TaggedMap is the multi-tag shape: {"<tag>": {"tasks": [...]}, ...}.
// Only members whose value carries a tasks array are kept, in source order.
type TaggedMap struct {
	Entries []Tag
}

func (FlatList) isDocument()   {}
func (TasksField) isDocument() {}
func (TaggedMap) isDocument()  {}

func (d FlatList) Tags() []Tag {
	return []Tag{{Name: DefaultTag, Tasks: d.Tasks}}
}

func (d TasksField) Tags() []Tag {
	return []Tag{{Name: DefaultTag, Tasks: d.Tasks}}
}

func (d TaggedMap) Tags() []Tag {
	return d.Entries
}

// Lookup returns the tag with the given name.
func (d TaggedMap) Lookup(name string) (Tag, bool) {
	for _, t := range d.Entries {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// ErrInvalidJSON is returned by ParseDocument for input that is not JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// ParseDocument resolves raw file contents into a Document. Only input that
// is not valid JSON is an error; any other unexpected shape yields an empty
// TaggedMap.
func ParseDocument(data []byte) (Document, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	data = bytes.TrimSpace(data)
	if list, ok := asList(data); ok {
		return FlatList{Tasks: list}, nil
	}
	members, err := orderedMembers(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	for _, m := range members {
		if m.key != "tasks" {
			continue
		}
		if list, ok := asList(m.value); ok {
			return TasksField{Tasks: list}, nil
		}
	}
	doc := TaggedMap{}
	for _, m := range members {
		if tasks, ok := tagTasks(m.value); ok {
			doc.Entries = append(doc.Entries, Tag{Name: m.key, Tasks: tasks})
		}
	}
	return doc, nil
}

// tagTasks extracts the tasks array of a tag object.
func tagTasks(raw json.RawMessage) ([]json.RawMessage, bool) {
	members, err := orderedMembers(raw)
	if err != nil {
		return nil, false
	}
	for _, m := range members {
		if m.key == "tasks" {
			return asList(m.value)
		}
	}
	return nil, false
}

func asList(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	list := []json.RawMessage{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

type member struct {
	key   string
	value json.RawMessage
}

// orderedMembers decodes a JSON object keeping its members in source order.
// A value that is not an object yields no members. Duplicate keys keep the
// first position and the last value, matching what a map decode would see.
func orderedMembers(raw json.RawMessage) ([]member, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var members []member
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if i, dup := index[key]; dup {
			members[i].value = value
			continue
		}
		index[key] = len(members)
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return members, nil
}
