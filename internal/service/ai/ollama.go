package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"visionbridge/internal/dto"
	"visionbridge/internal/model"
)

const ollamaPrompt = `List every distinct physical object you can see in this image.
Respond with JSON only, no prose, in exactly this shape:
{"objects": ["person", "chair"]}
Use short lowercase nouns. Repeat a noun once per instance. Use an empty list when nothing is recognisable.`

var (
	reFence    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// OllamaClient analyzes frames with a local Ollama vision model. It
// satisfies the same contract as Client.
type OllamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	now     func() time.Time
}

// NewOllamaClient creates a client for the Ollama server at rawURL. Any
// path on the URL is ignored.
func NewOllamaClient(rawURL, modelName string, timeout time.Duration) (*OllamaClient, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", rawURL)
	}
	if modelName == "" {
		return nil, errors.New("ollama model is required")
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaClient{
		client:  api.NewClient(base, http.DefaultClient),
		model:   modelName,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (c *OllamaClient) method() string {
	return "Ollama " + c.model
}

func (c *OllamaClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Analyze sends the frame to the model and parses the object list.
func (c *OllamaClient) Analyze(ctx context.Context, img model.EncodedImage) (model.DetectionResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: ollamaPrompt,
				Images:  []api.ImageData{api.ImageData(img.Data)},
			},
		},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return model.DetectionResult{}, ollamaError(ctx, err)
	}

	objects, err := parseObjects(content.String())
	if err != nil {
		return model.DetectionResult{}, &Error{Kind: KindServer, StatusCode: http.StatusOK, Message: "unparseable model output", Err: err}
	}

	return model.DetectionResult{
		Objects:         objects,
		ObjectCount:     len(objects),
		DetectionMethod: c.method(),
		Timestamp:       c.now(),
	}, nil
}

// Ping checks that the server answers.
func (c *OllamaClient) Ping(ctx context.Context) (dto.RootResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Heartbeat(ctx); err != nil {
		return dto.RootResponse{}, ollamaError(ctx, err)
	}
	return dto.RootResponse{DetectionMode: c.method(), Status: "running"}, nil
}

// Status reports the server version as the capability message.
func (c *OllamaClient) Status(ctx context.Context) (dto.StatusResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	version, err := c.client.Version(ctx)
	if err != nil {
		return dto.StatusResponse{}, ollamaError(ctx, err)
	}
	return dto.StatusResponse{Message: fmt.Sprintf("Ollama %s serving %s", version, c.model)}, nil
}

// Test confirms the configured model is installed.
func (c *OllamaClient) Test(ctx context.Context) (dto.TestResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.Show(ctx, &api.ShowRequest{Model: c.model})
	if err != nil {
		return dto.TestResponse{}, ollamaError(ctx, err)
	}

	family := resp.Details.Family
	if family == "" {
		family = "unknown family"
	}
	return dto.TestResponse{Response: fmt.Sprintf("%s ready (%s)", c.model, family), Status: "success"}, nil
}

func ollamaError(ctx context.Context, err error) *Error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &Error{Kind: KindServer, StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage, Err: err}
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return transportError(err)
}

// parseObjects extracts the object list from a model reply. Models often
// wrap JSON in fences or add comments, so those are stripped first.
func parseObjects(raw string) ([]string, error) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("no JSON object in reply %q", truncate(raw, 80))
	}

	var payload struct {
		Objects []string `json:"objects"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}

	objects := make([]string, 0, len(payload.Objects))
	for _, name := range payload.Objects {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			objects = append(objects, name)
		}
	}
	return objects, nil
}

func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := reFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
