package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/srinivasgumdelli/moat/internal/retry"
)

type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	mreq := anthropic.MessagesRequest{
		Model: anthropic.Model(req.Model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		mreq.System = req.System
	}
	if req.Temperature > 0 {
		t := req.Temperature
		mreq.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, mreq)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return Response{}, fmt.Errorf("no response content")
	}
	return Response{
		Text:         *resp.Content[0].Text,
		Model:        string(resp.Model),
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case anthropic.ErrTypeRateLimit, anthropic.ErrTypeOverloaded, anthropic.ErrTypeApi:
			return retry.Transient(err)
		}
		return err
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &retry.StatusError{Code: reqErr.StatusCode, Body: reqErr.Error()}
	}
	return err
}
