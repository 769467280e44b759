// Package notion exports artifacts to a Notion workspace as pages.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/export"
)

const (
	// DefaultBaseURL is the public Notion API.
	DefaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"

	maxRichText   = 2000
	maxPageBlocks = 100
	searchSize    = 20
)

var toolEmoji = map[domain.ToolType]string{
	domain.ToolPRD:                "📋",
	domain.ToolUserStories:        "📝",
	domain.ToolProblemRefiner:     "🎯",
	domain.ToolFeaturePrioritizer: "📊",
	domain.ToolSprintPlanner:      "🏃",
	domain.ToolInterviewPrep:      "🎤",
}

// Client talks to the Notion API.
type Client struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Notion client.
func NewClient(tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		tokens:     tokens,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page is a search hit usable as an export parent.
type Page struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Icon  *string `json:"icon"`
	URL   string  `json:"url"`
}

type richText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

type titleProperty struct {
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
}

type pageObject struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Icon *struct {
		Emoji string `json:"emoji"`
	} `json:"icon"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Search lists pages matching query.
func (c *Client) Search(ctx context.Context, query string) ([]Page, error) {
	body := map[string]interface{}{
		"query":     query,
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": searchSize,
	}

	var resp struct {
		Results []pageObject `json:"results"`
	}
	if err := c.do(ctx, "/search", body, &resp); err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := Page{ID: r.ID, URL: r.URL, Title: pageTitle(r.Properties)}
		if r.Icon != nil && r.Icon.Emoji != "" {
			emoji := r.Icon.Emoji
			p.Icon = &emoji
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func pageTitle(props map[string]json.RawMessage) string {
	for _, key := range []string{"title", "Name"} {
		raw, ok := props[key]
		if !ok {
			continue
		}
		var tp titleProperty
		if err := json.Unmarshal(raw, &tp); err == nil && len(tp.Title) > 0 && tp.Title[0].PlainText != "" {
			return tp.Title[0].PlainText
		}
	}
	return "Untitled"
}

// ExportArtifact creates a page under parentID and returns its URL.
func (c *Client) ExportArtifact(ctx context.Context, a *domain.Artifact, parentID string) (string, error) {
	if strings.TrimSpace(parentID) == "" {
		return "", domain.NewInputError("parentPageId", "must not be empty")
	}

	blocks := PageBlocks(a)
	body := map[string]interface{}{
		"parent": map[string]string{"page_id": parentID},
		"icon":   map[string]string{"type": "emoji", "emoji": toolEmoji[a.ToolType]},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"title": chunk(a.Title)},
		},
		"children": blocks,
	}

	var resp pageObject
	if err := c.do(ctx, "/pages", body, &resp); err != nil {
		return "", err
	}

	c.logger.Info("notion page created",
		"artifact_id", a.ID,
		"blocks", len(blocks),
	)
	return resp.URL, nil
}

// PageBlocks converts an artifact into Notion block objects: a header with
// the tool and input, a divider, then the body. At most 100 blocks are
// returned since Notion rejects larger page creations.
func PageBlocks(a *domain.Artifact) []map[string]interface{} {
	header := export.Block{Type: export.BlockText, Text: "Tool: " + a.ToolType.Label()}
	if a.RawInput != "" {
		header.Text += "\nInput: " + a.RawInput
	}

	all := append([]export.Block{header, {Type: export.BlockDivider}}, export.Blocks(a)...)
	if len(all) > maxPageBlocks {
		all = all[:maxPageBlocks]
	}

	out := make([]map[string]interface{}, 0, len(all))
	for _, b := range all {
		t := string(b.Type)
		content := map[string]interface{}{}
		if b.Type != export.BlockDivider {
			content["rich_text"] = chunk(b.Text)
		}
		out = append(out, map[string]interface{}{
			"object": "block",
			"type":   t,
			t:        content,
		})
	}
	return out
}

// chunk splits text into rich text items of at most 2000 characters.
func chunk(text string) []richText {
	var out []richText
	for text != "" {
		n := 0
		end := len(text)
		for i := range text {
			if n == maxRichText {
				end = i
				break
			}
			n++
		}
		var rt richText
		rt.Type = "text"
		rt.Text.Content = text[:end]
		out = append(out, rt)
		text = text[end:]
	}
	if out == nil {
		out = []richText{}
	}
	return out
}

func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Notion-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrNotConnected, apiErr.Message)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("notion %s: %s (status %d)", path, apiErr.Message, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
