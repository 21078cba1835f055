package taskmaster

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTemplates(t *testing.T) {
	lib, err := BuiltinTemplates()
	require.NoError(t, err)

	templates := lib.List()
	require.NotEmpty(t, templates)
	for i, tmpl := range templates {
		assert.NotEmpty(t, tmpl.Name, tmpl.ID)
		assert.NotEmpty(t, tmpl.Content, tmpl.ID)
		assert.NotEmpty(t, tmpl.Placeholders, tmpl.ID)
		if i > 0 {
			assert.Less(t, templates[i-1].ID, tmpl.ID)
		}
	}

	webApp, ok := lib.Get("web-app")
	require.True(t, ok)
	out := webApp.Apply(map[string]string{"Project Name": "Acme"})
	assert.Contains(t, out, "Acme")
	assert.NotContains(t, out, "[Project Name]")

	_, ok = lib.Get("missing")
	assert.False(t, ok)
}

func TestLoadTemplates_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "missing id",
			fsys: fstest.MapFS{"a.yaml": {Data: []byte("name: A\ncontent: x\n")}},
		},
		{
			name: "duplicate id",
			fsys: fstest.MapFS{
				"a.yaml": {Data: []byte("id: same\ncontent: x\n")},
				"b.yaml": {Data: []byte("id: same\ncontent: y\n")},
			},
		},
		{
			name: "invalid yaml",
			fsys: fstest.MapFS{"a.yaml": {Data: []byte("id: [unclosed\n")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTemplates(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplates_ListIsACopy(t *testing.T) {
	lib, err := LoadTemplates(fstest.MapFS{
		"a.yaml": {Data: []byte("id: a\ncontent: \"[X] [Y] [X]\"\n")},
	})
	require.NoError(t, err)

	list := lib.List()
	require.Len(t, list, 1)
	assert.Equal(t, []string{"X", "Y"}, list[0].Placeholders)
	list[0] = nil
	assert.NotNil(t, lib.List()[0])
}
