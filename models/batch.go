package models

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1"`

	// Options contains shared scrape options applied to all URLs.
	Options BatchOptions `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared scrape settings applied to every URL in a batch.
type BatchOptions struct {
	FetchMode       string `json:"fetch_mode,omitempty" binding:"omitempty,oneof=auto static browser"`
	IncludeMarkdown bool   `json:"include_markdown,omitempty"`
	Timeout         int    `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	Stealth         bool   `json:"stealth,omitempty"`
}

// ToScrapeRequest builds the per-URL request for one batch entry.
func (o BatchOptions) ToScrapeRequest(url string) *ScrapeRequest {
	req := &ScrapeRequest{
		URL:             url,
		FetchMode:       o.FetchMode,
		IncludeMarkdown: o.IncludeMarkdown,
		Timeout:         o.Timeout,
		Stealth:         o.Stealth,
	}
	req.Defaults()
	return req
}

// BatchResponse is the immediate response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Total  int          `json:"total"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch scrape operation.
type BatchJob struct {
	ID            string
	Status        string // "processing", "completed", "partial", "failed"
	Total         int
	Completed     int
	Results       []*ScrapeResponse
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}
