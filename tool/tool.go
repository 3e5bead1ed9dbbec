package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

type Choice string

const (
	ChoiceAuto Choice = "auto"
	ChoiceNone Choice = "none"
)

const TypeFunction = "function"

type Tool struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Required   []string   `json:"required"`
}

type Properties map[string]Property

type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Handler executes a tool call. args holds the JSON encoded arguments the
// agent produced. A returned error is reported back to the agent as
// {"error": msg}, never raised to the caller of the session.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Func adapts a typed handler into a Handler by decoding args into T.
func Func[T any](fn func(ctx context.Context, input T) (any, error)) Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var input T
		if len(args) > 0 {
			if err := json.Unmarshal(args, &input); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		return fn(ctx, input)
	}
}
