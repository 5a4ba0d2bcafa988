// Package mcp implements the tool transport over the Model Context
// Protocol, client side. It is the only place that knows how the catalog
// is fetched and how a tool call goes over the wire.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
)

// Client wraps an MCP client session as a ports.ToolTransport.
type Client struct {
	inner  *mcpclient.Client
	sseURL string
}

// NewSSE connects to an MCP server over SSE at the given base URL.
// The same URL is later handed to the sandbox so execution-mode stubs can
// reach the server from inside the interpreter.
func NewSSE(ctx context.Context, baseURL string) (*Client, error) {
	inner, err := mcpclient.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating MCP SSE client: %w", err)
	}
	if err := inner.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP SSE client: %w", err)
	}
	c := &Client{inner: inner, sseURL: baseURL}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewStreamableHTTP connects to an MCP server over streamable HTTP.
func NewStreamableHTTP(ctx context.Context, url string) (*Client, error) {
	inner, err := mcpclient.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("creating MCP HTTP client: %w", err)
	}
	if err := inner.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP HTTP client: %w", err)
	}
	c := &Client{inner: inner, sseURL: url}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	req := mcpproto.InitializeRequest{}
	req.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpproto.Implementation{
		Name:    "canopy",
		Version: strings.TrimSpace(canopy.Version),
	}
	if _, err := c.inner.Initialize(ctx, req); err != nil {
		return fmt.Errorf("initializing MCP session: %w", err)
	}
	return nil
}

// URL returns the server endpoint this client is connected to.
func (c *Client) URL() string {
	return c.sseURL
}

// Close shuts the underlying session down.
func (c *Client) Close() error {
	return c.inner.Close()
}

// ListTools fetches the current catalog snapshot.
func (c *Client) ListTools(ctx context.Context) (domain.Catalog, error) {
	res, err := c.inner.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	catalog := make(domain.Catalog, 0, len(res.Tools))
	for _, t := range res.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("encoding schema for %q: %w", t.Name, err)
		}
		catalog = append(catalog, domain.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return catalog, nil
}

// CallTool invokes one tool by raw name. Text-bearing result items are
// opportunistically JSON-decoded, falling back to the raw text; a single
// item is returned bare, multiple items as a slice.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling tool %q: %w", name, err)
	}

	items := make([]any, 0, len(res.Content))
	for _, content := range res.Content {
		items = append(items, decodeContent(content))
	}

	if res.IsError {
		return nil, fmt.Errorf("tool %q returned an error: %v", name, items)
	}

	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	default:
		return items, nil
	}
}

func decodeContent(content mcpproto.Content) any {
	text, ok := content.(mcpproto.TextContent)
	if !ok {
		return content
	}
	var decoded any
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		return text.Text
	}
	return decoded
}
