package llm

import "context"

type workspaceKey struct{}

// WithWorkspace attributes LLM calls made with ctx to a workspace for
// budget accounting. Requests that set WorkspaceID explicitly win.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, workspaceID)
}

// WorkspaceFrom returns the workspace attached by WithWorkspace.
func WorkspaceFrom(ctx context.Context) string {
	id, _ := ctx.Value(workspaceKey{}).(string)
	return id
}
