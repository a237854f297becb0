package generation

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/prompts"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*transport.Response)
	return resp, args.Error(1)
}

func reply(content string) *transport.Response {
	return &transport.Response{Content: content, FinishReason: domain.FinishStop}
}

// userPrompt returns the last user message of a request.
func userPrompt(req *transport.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func promptContains(s string) any {
	return mock.MatchedBy(func(req *transport.Request) bool {
		return strings.Contains(userPrompt(req), s)
	})
}

// lastRequest returns the request of the most recent recorded call.
func lastRequest(m *mockCompleter) *transport.Request {
	calls := m.Calls
	return calls[len(calls)-1].Arguments.Get(1).(*transport.Request)
}

func defaultRegistry() *prompts.Registry {
	r, err := prompts.NewDefaultRegistry()
	if err != nil {
		panic(err)
	}
	return r
}
