package extract

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var embeddedPrompts embed.FS

// Template is a versioned extraction prompt loaded from YAML. Prompts ship
// embedded in the binary; a directory override lets operators iterate on
// wording without rebuilding.
type Template struct {
	Parameters   map[string]any    `yaml:"parameters"`
	Metadata     map[string]string `yaml:"metadata"`
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	SystemPrompt string            `yaml:"system_prompt"`
	UserTemplate string            `yaml:"user_template"`
}

// Render substitutes ${name} variables into the user template. Unknown
// variables render empty.
func (t *Template) Render(vars map[string]string) string {
	return os.Expand(t.UserTemplate, func(key string) string {
		return vars[key]
	})
}

// MaxTokens returns the template's max_tokens parameter, or def when the
// template does not set one.
func (t *Template) MaxTokens(def int) int {
	v, ok := t.Parameters["max_tokens"]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

// LoadTemplate loads the prompt named name at the given version. An empty
// version selects the highest vN available. When dir is non-empty its YAML
// files take precedence over the embedded set.
func LoadTemplate(dir, name, version string) (*Template, error) {
	var fsys fs.FS = embeddedPrompts
	root := "prompts"
	if dir != "" {
		fsys = os.DirFS(dir)
		root = "."
	}

	filename := ""
	if version != "" {
		filename = fmt.Sprintf("%s_%s.yaml", name, version)
	} else {
		latest, err := latestVersion(fsys, root, name)
		if err != nil {
			return nil, err
		}
		filename = latest
	}

	data, err := fs.ReadFile(fsys, filepath.Join(root, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt %s: %w", filename, err)
	}

	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("invalid prompt YAML %s: %w", filename, err)
	}

	if tmpl.Name == "" || tmpl.Version == "" || tmpl.SystemPrompt == "" || tmpl.UserTemplate == "" {
		return nil, fmt.Errorf("prompt %s is missing required fields", filename)
	}
	return &tmpl, nil
}

// latestVersion finds the highest-numbered name_vN.yaml in the prompt set.
func latestVersion(fsys fs.FS, root, name string) (string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return "", fmt.Errorf("failed to list prompts: %w", err)
	}

	type candidate struct {
		file    string
		version int
	}
	var candidates []candidate
	prefix := name + "_v"
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".yaml")
		if !strings.HasPrefix(stem, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(stem, prefix))
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{file: e.Name(), version: n})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no prompt files found for %q", name)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].version > candidates[j].version })
	return candidates[0].file, nil
}
