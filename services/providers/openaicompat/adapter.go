package openaicompat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/upb/llm-chat-client/services/providers"
)

// ChatRequest is the body accepted by OpenAI-compatible chat-completion endpoints
type ChatRequest struct {
	Model    string              `json:"model"`
	Messages []providers.Message `json:"messages"`
	Stream   bool                `json:"stream"`
}

// ChatResponse keeps message content raw because providers send either a
// string or a list of text-bearing chunks.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// BearerHeaders builds the JSON content type and bearer authorization headers
func BearerHeaders(credential string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+credential)
	return h
}

// BuildPayload marshals a non-streaming chat request
func BuildPayload(model string, messages []providers.Message) ([]byte, error) {
	if messages == nil {
		messages = []providers.Message{}
	}
	body, err := json.Marshal(ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// NormalizeResponse extracts choices[0].message.content as an assistant turn
func NormalizeResponse(raw []byte) (providers.Turn, error) {
	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return providers.Turn{}, fmt.Errorf("%w: %v", providers.ErrUnexpectedFormat, err)
	}

	if len(resp.Choices) == 0 {
		return providers.Turn{}, fmt.Errorf("%w: no choices", providers.ErrUnexpectedFormat)
	}

	content, err := ContentText(resp.Choices[0].Message.Content)
	if err != nil {
		return providers.Turn{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return providers.Turn{}, fmt.Errorf("%w: empty content", providers.ErrUnexpectedFormat)
	}

	return providers.Turn{Role: providers.RoleAssistant, Content: content}, nil
}

// ContentText decodes a message content field. A string is returned as-is;
// a list is concatenated in order, where string chunks contribute themselves,
// object chunks contribute their "text" string and anything else contributes
// nothing. Any other shape is an ErrUnexpectedFormat.
func ContentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing content", providers.ErrUnexpectedFormat)
	}

	var content interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", fmt.Errorf("%w: %v", providers.ErrUnexpectedFormat, err)
	}

	switch v := content.(type) {
	case string:
		return v, nil
	case []interface{}:
		var sb strings.Builder
		for _, chunk := range v {
			sb.WriteString(chunkText(chunk))
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("%w: content is %T", providers.ErrUnexpectedFormat, content)
	}
}

func chunkText(chunk interface{}) string {
	switch c := chunk.(type) {
	case string:
		return c
	case map[string]interface{}:
		if text, ok := c["text"].(string); ok {
			return text
		}
	}
	return ""
}
