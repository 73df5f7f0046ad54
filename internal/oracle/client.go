package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/meera/souschef/internal/observability"
)

// Client wraps the reasoning model behind both agents. Streaming responses
// are coalesced into a complete message before anyone tries to extract a
// structured call from them; if streaming yields nothing usable, a single
// non-streaming request is attempted before a communication failure is
// surfaced.
type Client struct {
	model     llms.Model
	streaming bool
	logger    *observability.Logger
}

type ClientOption func(*Client)

func WithStreaming(on bool) ClientOption {
	return func(c *Client) { c.streaming = on }
}

func WithLogger(l *observability.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(model llms.Model, opts ...ClientOption) *Client {
	c := &Client{model: model, streaming: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate runs one request/response round and returns the completed choice.
func (c *Client) Generate(ctx context.Context, role string, messages []llms.MessageContent, tools []llms.Tool) (*llms.ContentChoice, error) {
	var opts []llms.CallOption
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	if c.streaming {
		choice, err := c.generateStreaming(ctx, messages, opts)
		if err == nil && usable(choice) {
			c.logChoice(role, messages, choice)
			return choice, nil
		}
		if err != nil {
			log.Printf("[Oracle] stream failed (%v); non-streaming fallback", err)
		} else {
			log.Printf("[Oracle] stream yielded no usable content; non-streaming fallback")
		}
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}
	choice := resp.Choices[0]
	c.logChoice(role, messages, choice)
	return choice, nil
}

func (c *Client) generateStreaming(ctx context.Context, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentChoice, error) {
	var fragments strings.Builder
	sopts := append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		fragments.Write(chunk)
		return nil
	}))

	resp, err := c.model.GenerateContent(ctx, messages, sopts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices")
	}
	choice := resp.Choices[0]
	// Some providers deliver all content through the stream and leave the
	// final message empty; the reassembled fragments are the message then.
	if choice.Content == "" && len(choice.ToolCalls) == 0 && fragments.Len() > 0 {
		choice.Content = fragments.String()
	}
	return choice, nil
}

func usable(choice *llms.ContentChoice) bool {
	return choice != nil && (choice.Content != "" || len(choice.ToolCalls) > 0)
}

func (c *Client) logChoice(role string, messages []llms.MessageContent, choice *llms.ContentChoice) {
	if c.logger == nil {
		return
	}
	var calls []string
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil {
			calls = append(calls, tc.FunctionCall.Name)
		}
	}
	c.logger.LogOracle("", role, len(messages), choice.Content, calls)
}
