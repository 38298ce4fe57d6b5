// Package chat provides a client for OpenAI-compatible chat completion
// APIs. The composer builds exactly one Request per inbound message and
// turns the Result into the outbound reply.
package chat

import "errors"

// ErrEmptyCompletion indicates the model returned no usable choice.
var ErrEmptyCompletion = errors.New("empty completion")

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Request is the internal request structure
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float32 // optional temperature
	MaxTokens   *int     // optional max tokens
}

// Result is the internal result structure
type Result struct {
	Message      Message
	Model        string
	FinishReason string
	Usage        Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
