package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CurrentCanonicalVersion defines the canonicalization format version.
// Increment when canonicalization logic changes.
const CurrentCanonicalVersion = "v1"

// ErrOperationRequired indicates a request without an operation type.
var ErrOperationRequired = errors.New("operation is required")

// CanonicalPayload is the normalized form of a logical LLM request.
// Equivalent requests produce identical payloads, so the derived key stays
// stable across retries of the same call.
type CanonicalPayload struct {
	Version     string             `json:"version"`
	Operation   OperationType      `json:"operation"`
	WorkspaceID string             `json:"workspace_id,omitempty"`
	Model       string             `json:"model,omitempty"`
	Messages    []CanonicalMessage `json:"messages,omitempty"`
	Input       string             `json:"input,omitempty"`
	Params      map[string]any     `json:"params,omitempty"`
}

// CanonicalMessage is a normalized conversation entry.
type CanonicalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IdemKey is a SHA-256 hex digest of a canonical payload.
type IdemKey string

// String returns the string representation of the idempotency key.
func (k IdemKey) String() string { return string(k) }

// BuildCanonicalPayload transforms a request into canonical form.
func BuildCanonicalPayload(req *Request) (*CanonicalPayload, error) {
	if req.Operation == "" {
		return nil, ErrOperationRequired
	}

	payload := &CanonicalPayload{
		Version:     CurrentCanonicalVersion,
		Operation:   req.Operation,
		WorkspaceID: req.WorkspaceID,
		Model:       req.Model,
		Input:       normalizeText(req.Input),
	}

	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, CanonicalMessage{
			Role:    string(m.Role),
			Content: normalizeText(m.Content),
		})
	}

	params := map[string]any{}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		params["max_tokens"] = req.MaxTokens
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	if len(req.Stop) > 0 {
		params["stop"] = req.Stop
	}
	if len(params) > 0 {
		payload.Params = params
	}

	return payload, nil
}

// BuildIdemKey hashes a canonical payload.
// encoding/json sorts map keys, so Params serialise deterministically.
func BuildIdemKey(payload *CanonicalPayload) (IdemKey, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical payload: %w", err)
	}

	hash := sha256.Sum256(jsonBytes)
	return IdemKey(hex.EncodeToString(hash[:])), nil
}

// GenerateIdemKey builds the canonical payload and derives its key.
func GenerateIdemKey(req *Request) (IdemKey, error) {
	payload, err := BuildCanonicalPayload(req)
	if err != nil {
		return "", fmt.Errorf("failed to build canonical payload: %w", err)
	}
	return BuildIdemKey(payload)
}

// normalizeText trims, unifies line endings, and collapses runs of spaces
// within each line so formatting noise does not change the key.
func normalizeText(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}
