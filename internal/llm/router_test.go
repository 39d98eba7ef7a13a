package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns a fixed response and records the last request.
type stubClient struct {
	lastReq  *Request
	text     string
	model    string
	provider Provider
}

func (s *stubClient) Provider() Provider { return s.provider }
func (s *stubClient) Model() string      { return s.model }

func (s *stubClient) Generate(_ context.Context, req Request) (Response, error) {
	s.lastReq = &req
	return Response{Text: s.text, InputTokens: 10, OutputTokens: 5}, nil
}

func TestRouter(t *testing.T) {
	fallback := &stubClient{provider: ProviderAnthropic, model: "haiku", text: "fallback"}
	extraction := &stubClient{provider: ProviderOllama, model: "llama3.2", text: "extraction"}

	r, err := NewRouter(fallback)
	require.NoError(t, err)
	r.Register(UseCaseExtraction, extraction)

	t.Run("registered use case gets its client", func(t *testing.T) {
		resp, err := r.Generate(context.Background(), Request{UseCase: UseCaseExtraction, Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "extraction", resp.Text)
		require.NotNil(t, extraction.lastReq)
		assert.Equal(t, "p", extraction.lastReq.Prompt)
	})

	t.Run("unregistered use case falls back", func(t *testing.T) {
		resp, err := r.Generate(context.Background(), Request{UseCase: UseCaseChat, Prompt: "q"})
		require.NoError(t, err)
		assert.Equal(t, "fallback", resp.Text)
	})

	t.Run("ClientFor mirrors routing", func(t *testing.T) {
		assert.Same(t, Client(extraction), r.ClientFor(UseCaseExtraction))
		assert.Same(t, Client(fallback), r.ClientFor(UseCaseSummary))
	})
}

func TestRouterRequiresFallback(t *testing.T) {
	_, err := NewRouter(nil)
	assert.Error(t, err)
}
