// Command sieve-mcp exposes a running sieve API as MCP tools over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("SIEVE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := newClient(apiURL, os.Getenv("SIEVE_API_KEY"))

	s := server.NewMCPServer(
		"sieve",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_url",
		mcp.WithDescription("Scrape a web page and return it as typed sections (nav, hero, pricing, faq, ...) with headings, text, links, lists and tables. Renders JavaScript apps in a headless browser only when needed."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("'auto' (default: static fetch, render if the page is an app shell), 'static' (never render) or 'browser' (always render)"),
			mcp.Enum("auto", "static", "browser"),
		),
		mcp.WithBoolean("include_markdown",
			mcp.Description("Include a Markdown rendering of every section"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable anti-bot evasions when rendering"),
		),
	), c.handleScrapeURL)

	s.AddTool(mcp.NewTool("batch_scrape",
		mcp.WithDescription("Scrape multiple URLs in parallel and return the sections of each page."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to scrape"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("'auto' (default), 'static' or 'browser'"),
			mcp.Enum("auto", "static", "browser"),
		),
	), c.handleBatchScrape)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
