package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIBaseURL            = "https://api.openai.com/v1"
	openAIChatEndpoint       = "/chat/completions"
	openAITranscribeEndpoint = "/audio/transcriptions"

	// ModelGPT4oMini handles both generation and frame description.
	ModelGPT4oMini = "gpt-4o-mini"

	// ModelWhisper1 handles speech transcription.
	ModelWhisper1 = "whisper-1"

	defaultOpenAITimeout = 120 * time.Second

	describePrompt = "Describe what is happening on this screen: the application in focus, " +
		"the visible content, and any user action in progress. Be concrete and brief."
)

// OpenAIProvider implements Describer, Transcriber and Generator against the
// OpenAI API.
type OpenAIProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	chatModel string
	sttModel  string
}

// OpenAIOption configures the provider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets a custom base URL (for testing or proxies).
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithChatModel overrides the generation/vision model.
func WithChatModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.chatModel = model
	}
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:    apiKey,
		baseURL:   openAIBaseURL,
		client:    &http.Client{Timeout: defaultOpenAITimeout},
		chatModel: ModelGPT4oMini,
		sttModel:  ModelWhisper1,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate runs a single chat completion over the prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: p.chatModel,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	return p.chat(ctx, req)
}

// DescribeImage sends the frame inline as a data URL with a fixed
// scene-description instruction.
func (p *OpenAIProvider) DescribeImage(ctx context.Context, image []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	req := chatRequest{
		Model: p.chatModel,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatContentPart{
					{Type: "text", Text: describePrompt},
					{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
				},
			},
		},
	}

	return p.chat(ctx, req)
}

func (p *OpenAIProvider) chat(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+openAIChatEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request returned %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse

	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return parsed.Choices[0].Message.Content, nil
}
