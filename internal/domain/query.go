package domain

import "encoding/json"

// GeneralCategory labels queries that are not tied to a user category.
const GeneralCategory = "General"

// Query is one natural-language request sent to the provider together with
// the category it was derived from.
type Query struct {
	Text         string `json:"query"`
	CategoryID   *uint  `json:"category_id,omitempty"`
	CategoryName string `json:"category_name"`
	UserID       *uint  `json:"user_id,omitempty"`
}

// Category returns the label used for tagging, defaulting to General.
func (q Query) Category() string {
	if q.CategoryName == "" {
		return GeneralCategory
	}
	return q.CategoryName
}

// ContentItem is a candidate extracted from free text. Any field may be empty.
type ContentItem struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Empty reports whether no field was captured.
func (c ContentItem) Empty() bool {
	return c.Title == "" && c.URL == "" && c.Summary == ""
}

// ChatMessage is a single chat-completion message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatResponse is the decoded provider payload. Raw keeps the bytes as received.
type ChatResponse struct {
	ID        string          `json:"id,omitempty"`
	Model     string          `json:"model,omitempty"`
	Choices   []ChatChoice    `json:"choices"`
	Citations []string        `json:"citations,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// FirstContent returns the text of the first choice.
func (r *ChatResponse) FirstContent() (string, bool) {
	if r == nil || len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

// DecodeChatResponse parses a raw provider payload.
func DecodeChatResponse(raw []byte) (*ChatResponse, error) {
	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	resp.Raw = append(json.RawMessage(nil), raw...)
	return &resp, nil
}

// Counts aggregates persistence outcomes.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Processed int `json:"processed"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Processed += other.Processed
}
