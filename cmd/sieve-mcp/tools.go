package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/use-agent/sieve/models"
)

// client calls the sieve HTTP API.
type client struct {
	apiURL       string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newClient(apiURL, apiKey string) *client {
	return &client{
		apiURL:       strings.TrimRight(apiURL, "/"),
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 600 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

func (c *client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *client) handleScrapeURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	payload := models.ScrapeRequest{
		URL:             url,
		FetchMode:       request.GetString("fetch_mode", ""),
		IncludeMarkdown: request.GetBool("include_markdown", false),
		Stealth:         request.GetBool("stealth", false),
	}

	var resp models.ScrapeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/scrape", payload, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !resp.Success || resp.Result == nil {
		return mcp.NewToolResultError(errorText(resp.Error, "scrape failed")), nil
	}
	return mcp.NewToolResultText(formatPage(resp.Result)), nil
}

func (c *client) handleBatchScrape(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := request.RequireStringSlice("urls")
	if err != nil {
		return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
	}
	payload := models.BatchRequest{
		URLs:    urls,
		Options: models.BatchOptions{FetchMode: request.GetString("fetch_mode", "")},
	}

	var accepted models.BatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/batch/scrape", payload, &accepted); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
	}
	if accepted.ID == "" {
		return mcp.NewToolResultError(errorText(accepted.Error, "batch job creation failed")), nil
	}

	status, err := c.pollBatch(ctx, accepted.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
	for i, r := range status.Results {
		switch {
		case r == nil:
			fmt.Fprintf(&sb, "=== [%d] pending ===\n\n", i+1)
		case !r.Success || r.Result == nil:
			fmt.Fprintf(&sb, "=== [%d] FAILED: %s ===\n\n", i+1, errorText(r.Error, "unknown error"))
		default:
			fmt.Fprintf(&sb, "=== [%d] %s ===\n%s\n", i+1, r.Result.URL, formatPage(r.Result))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// pollBatch polls the job until it leaves the processing state or ctx ends.
func (c *client) pollBatch(ctx context.Context, id string) (*models.BatchStatusResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var status models.BatchStatusResponse
			if err := c.do(ctx, http.MethodGet, "/api/v1/batch/"+id, nil, &status); err != nil {
				return nil, err
			}
			if status.Status != "processing" {
				return &status, nil
			}
		}
	}
}

func errorText(detail *models.ErrorDetail, fallback string) string {
	if detail == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
}

// formatPage renders a PageResult as compact plain text for a model to read.
func formatPage(p *models.PageResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nSource: %s\n", p.Meta.Title, p.URL)
	if p.Meta.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", p.Meta.Description)
	}

	for _, s := range p.Sections {
		fmt.Fprintf(&sb, "\n## [%s] %s\n", s.Type, s.Label)
		if s.Markdown != "" {
			sb.WriteString(s.Markdown + "\n")
			continue
		}
		for _, h := range s.Content.Headings {
			sb.WriteString("# " + h + "\n")
		}
		if s.Content.Text != "" {
			sb.WriteString(s.Content.Text + "\n")
		}
		for _, list := range s.Content.Lists {
			for _, item := range list {
				sb.WriteString("- " + item + "\n")
			}
		}
		for _, table := range s.Content.Tables {
			for _, row := range table {
				sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
			}
		}
		for _, l := range s.Content.Links {
			fmt.Fprintf(&sb, "[%s](%s)\n", l.Text, l.Href)
		}
	}

	if len(p.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, e := range p.Errors {
			fmt.Fprintf(&sb, "- %s: %s\n", e.Phase, e.Message)
		}
	}
	return sb.String()
}
