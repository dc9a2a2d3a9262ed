package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	DefaultURL       = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel     = "llama3-70b-8192"
	DefaultMaxTokens = 2048
)

var ErrMissingAPIKey = errors.New("completion api key not configured")

type Options struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	opts   Options
	client *fasthttp.Client
}

func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Client{
		opts: opts,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         60 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single user prompt and returns the first choice's text, empty when the
// endpoint returns no choices.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.opts.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	body, err := json.Marshal(chatRequest{
		Model:     c.opts.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.opts.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("completion api error: %d", resp.StatusCode())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
