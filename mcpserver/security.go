package mcpserver

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// InputValidator checks tool call arguments before they reach the engine
type InputValidator struct {
	maxBytes int
}

// NewInputValidator creates a validator bounding arguments to maxBytes of
// JSON; maxBytes <= 0 disables the size check
func NewInputValidator(maxBytes int) *InputValidator {
	return &InputValidator{maxBytes: maxBytes}
}

// ValidateArguments rejects oversized calls, unknown argument names and
// missing required arguments according to the tool's input schema
func (v *InputValidator) ValidateArguments(tool mcp.Tool, args map[string]interface{}) error {
	if v.maxBytes > 0 {
		size, err := argumentSize(args)
		if err != nil {
			return err
		}
		if size > v.maxBytes {
			return &inputTooLargeError{size: size, limit: v.maxBytes}
		}
	}

	var unknown []string
	for name := range args {
		if _, ok := tool.InputSchema.Properties[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("invalid arguments for %s: unknown %v", tool.Name, unknown)
	}

	for _, name := range tool.InputSchema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("invalid arguments for %s: %s is required", tool.Name, name)
		}
	}
	return nil
}

type inputTooLargeError struct {
	size  int
	limit int
}

func (e *inputTooLargeError) Error() string {
	return fmt.Sprintf("input of %d bytes exceeds maximum of %d bytes", e.size, e.limit)
}

func argumentSize(args map[string]interface{}) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("invalid arguments: %w", err)
	}
	return len(data), nil
}
