package taskmaster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MCPServerName is the name the CLI documents for its MCP server entry.
const MCPServerName = "task-master-ai"

const (
	ScopeUser    = "user"
	ScopeLocal   = "local"
	ScopeProject = "project"
)

// MCPServerConfig is one entry of an mcpServers object.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	URL     string            `json:"url,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Runnable reports whether the entry can be started: it names a command or
// points at a URL.
func (c MCPServerConfig) Runnable() bool {
	return c.Command != "" || c.URL != ""
}

func (c MCPServerConfig) referencesTaskmaster() bool {
	if strings.Contains(c.Command, "task-master") {
		return true
	}
	for _, a := range c.Args {
		if strings.Contains(a, "task-master") {
			return true
		}
	}
	return false
}

// MCPServerSummary is the display form of a server entry. Environment
// values are never exposed, only their names.
type MCPServerSummary struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	URL     string   `json:"url,omitempty"`
	EnvVars []string `json:"envVars,omitempty"`
}

func summarize(c MCPServerConfig) *MCPServerSummary {
	s := &MCPServerSummary{Type: c.Type, Command: c.Command, Args: c.Args, URL: c.URL}
	for k := range c.Env {
		s.EnvVars = append(s.EnvVars, k)
	}
	sort.Strings(s.EnvVars)
	return s
}

// MCPDetection is the result of looking for the TaskMaster MCP server.
type MCPDetection struct {
	HasMCPServer     bool              `json:"hasMCPServer"`
	IsConfigured     bool              `json:"isConfigured"`
	HasAPIKeys       bool              `json:"hasApiKeys"`
	HasConfig        bool              `json:"hasConfig"`
	Scope            string            `json:"scope,omitempty"`
	ServerName       string            `json:"serverName,omitempty"`
	Config           *MCPServerSummary `json:"config,omitempty"`
	ConfigPath       string            `json:"configPath,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	AvailableServers []string          `json:"availableServers,omitempty"`
}

// Configured reports whether the entry exists and is runnable.
func (d *MCPDetection) Configured() bool {
	return d != nil && d.HasMCPServer && d.IsConfigured
}

// MCPServerEntry is one configured server with the scope it came from.
// Only the summary is serialized.
type MCPServerEntry struct {
	Name       string            `json:"name"`
	Scope      string            `json:"scope"`
	Project    string            `json:"project,omitempty"`
	ConfigPath string            `json:"configPath"`
	Config     *MCPServerSummary `json:"config"`

	raw MCPServerConfig
}

// MCPServerList is every MCP server visible from a project.
type MCPServerList struct {
	HasConfig  bool             `json:"hasConfig"`
	ConfigPath string           `json:"configPath,omitempty"`
	Servers    []MCPServerEntry `json:"servers"`
}

// MCPDetector reads the editor's MCP configuration. The candidate files are
// tried in order and the first readable, parseable one is used.
type MCPDetector struct {
	configPaths []string
}

func NewMCPDetector(configPaths []string) *MCPDetector {
	return &MCPDetector{configPaths: configPaths}
}

// DefaultMCPConfigPaths returns the user-level configuration files of the
// editor.
func DefaultMCPConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".claude.json"),
		filepath.Join(home, ".claude", "settings.json"),
	}
}

// Detect looks for the TaskMaster server visible from projectPath. Read and
// parse failures are reported through Reason.
func (d *MCPDetector) Detect(projectPath string) *MCPDetection {
	entries, hasConfig, configPath := d.collect(projectPath)
	if !hasConfig {
		return &MCPDetection{Reason: "no Claude configuration file found"}
	}
	for _, e := range entries {
		if e.Name != MCPServerName && !strings.Contains(e.Name, "task-master") && !e.raw.referencesTaskmaster() {
			continue
		}
		return &MCPDetection{
			HasMCPServer: true,
			IsConfigured: e.raw.Runnable(),
			HasAPIKeys:   len(e.raw.Env) > 0,
			HasConfig:    true,
			Scope:        e.Scope,
			ServerName:   e.Name,
			Config:       e.Config,
			ConfigPath:   e.ConfigPath,
		}
	}
	available := []string{}
	for _, e := range entries {
		available = append(available, e.Name)
	}
	return &MCPDetection{
		HasConfig:        true,
		ConfigPath:       configPath,
		Reason:           MCPServerName + " not found in configured MCP servers",
		AvailableServers: available,
	}
}

// ListServers returns every server visible from projectPath in search order.
func (d *MCPDetector) ListServers(projectPath string) *MCPServerList {
	entries, hasConfig, configPath := d.collect(projectPath)
	if entries == nil {
		entries = []MCPServerEntry{}
	}
	return &MCPServerList{HasConfig: hasConfig, ConfigPath: configPath, Servers: entries}
}

// RecommendedConfig returns the mcpServers snippet the CLI documents.
func RecommendedConfig() map[string]map[string]MCPServerConfig {
	return map[string]map[string]MCPServerConfig{
		"mcpServers": {
			MCPServerName: {
				Command: "npx",
				Args:    []string{"-y", "--package=task-master-ai", "task-master-ai"},
				Env: map[string]string{
					"ANTHROPIC_API_KEY":  "your_anthropic_api_key_here",
					"PERPLEXITY_API_KEY": "your_perplexity_api_key_here",
					"OPENAI_API_KEY":     "your_openai_api_key_here",
				},
			},
		},
	}
}

// collect gathers servers in search order: user scope, the project's own
// .mcp.json, then per-project entries of the user config with projectPath
// first.
func (d *MCPDetector) collect(projectPath string) ([]MCPServerEntry, bool, string) {
	var entries []MCPServerEntry
	hasConfig := false

	configPath, root, ok := d.load()
	if ok {
		hasConfig = true
		for _, m := range root {
			if m.key == "mcpServers" {
				entries = append(entries, serverEntries(m.value, ScopeUser, "", configPath)...)
			}
		}
	}

	if projectPath != "" {
		localPath := filepath.Join(projectPath, ".mcp.json")
		if local, ok := readMembers(localPath); ok {
			if !hasConfig {
				configPath = localPath
			}
			hasConfig = true
			for _, m := range local {
				if m.key == "mcpServers" {
					entries = append(entries, serverEntries(m.value, ScopeLocal, projectPath, localPath)...)
				}
			}
		}
	}

	if ok {
		for _, m := range root {
			if m.key != "projects" {
				continue
			}
			projects, _ := orderedMembers(m.value)
			sort.SliceStable(projects, func(i, j int) bool {
				return samePath(projects[i].key, projectPath) && !samePath(projects[j].key, projectPath)
			})
			for _, p := range projects {
				pm, _ := orderedMembers(p.value)
				for _, field := range pm {
					if field.key == "mcpServers" {
						entries = append(entries, serverEntries(field.value, ScopeProject, p.key, configPath)...)
					}
				}
			}
		}
	}
	return entries, hasConfig, configPath
}

func (d *MCPDetector) load() (string, []member, bool) {
	for _, p := range d.configPaths {
		if members, ok := readMembers(p); ok {
			return p, members, true
		}
	}
	return "", nil, false
}

func readMembers(path string) ([]member, bool) {
	data, err := os.ReadFile(path)
	if err != nil || !json.Valid(data) {
		return nil, false
	}
	members, err := orderedMembers(data)
	if err != nil {
		return nil, false
	}
	return members, true
}

func serverEntries(raw json.RawMessage, scope, project, configPath string) []MCPServerEntry {
	servers, _ := orderedMembers(raw)
	entries := make([]MCPServerEntry, 0, len(servers))
	for _, s := range servers {
		c := decodeServer(s.value)
		entries = append(entries, MCPServerEntry{
			Name:       s.key,
			Scope:      scope,
			Project:    project,
			ConfigPath: configPath,
			Config:     summarize(c),
			raw:        c,
		})
	}
	return entries
}

func decodeServer(raw json.RawMessage) MCPServerConfig {
	r := decodeRecord(raw)
	c := MCPServerConfig{
		Type:    r.str("type", ""),
		Command: r.str("command", ""),
		URL:     r.str("url", ""),
	}
	for _, a := range r.list("args") {
		var s string
		if err := json.Unmarshal(a, &s); err == nil {
			c.Args = append(c.Args, s)
		}
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(r["env"], &env); err == nil {
		for k, v := range env {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				continue
			}
			if c.Env == nil {
				c.Env = map[string]string{}
			}
			c.Env[k] = s
		}
	}
	return c
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
