package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplate(t *testing.T) {
	t.Run("embedded default loads", func(t *testing.T) {
		tmpl, err := LoadTemplate("", "transaction", "")
		require.NoError(t, err)
		assert.Equal(t, "transaction", tmpl.Name)
		assert.Equal(t, "v1", tmpl.Version)
		assert.Contains(t, tmpl.SystemPrompt, "debit")
		assert.Equal(t, 500, tmpl.MaxTokens(100))
	})

	t.Run("pinned version loads", func(t *testing.T) {
		tmpl, err := LoadTemplate("", "transaction", "v1")
		require.NoError(t, err)
		assert.Equal(t, "v1", tmpl.Version)
	})

	t.Run("unknown version fails", func(t *testing.T) {
		_, err := LoadTemplate("", "transaction", "v99")
		assert.Error(t, err)
	})

	t.Run("directory override shadows embedded", func(t *testing.T) {
		dir := t.TempDir()
		custom := `name: transaction
version: v2
system_prompt: custom system
user_template: "email: ${email_content}"
parameters:
  max_tokens: 256
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "transaction_v2.yaml"), []byte(custom), 0o600))

		tmpl, err := LoadTemplate(dir, "transaction", "")
		require.NoError(t, err)
		assert.Equal(t, "v2", tmpl.Version)
		assert.Equal(t, 256, tmpl.MaxTokens(500))
	})

	t.Run("missing required fields rejected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "transaction_v1.yaml"), []byte("name: transaction\n"), 0o600))

		_, err := LoadTemplate(dir, "transaction", "v1")
		assert.Error(t, err)
	})
}

func TestTemplateRender(t *testing.T) {
	tmpl := &Template{UserTemplate: "Extract from:\n${email_content}\nend"}

	out := tmpl.Render(map[string]string{"email_content": "Subject: alert"})
	assert.Equal(t, "Extract from:\nSubject: alert\nend", out)

	// Unknown variables render empty rather than leaking the placeholder.
	out = tmpl.Render(nil)
	assert.Equal(t, "Extract from:\n\nend", out)
}
