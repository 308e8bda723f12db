// Package telegraph hosts oversized listing descriptions on telegra.ph so
// chat messages only need to carry a link.
package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"flatwatch/models"
)

const apiBase = "https://api.telegra.ph"

type Client struct {
	client     *http.Client
	baseURL    string
	shortName  string
	authorName string

	mu    sync.Mutex
	token string
}

func NewClient(httpClient *http.Client, shortName, authorName string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		client:     httpClient,
		baseURL:    apiBase,
		shortName:  shortName,
		authorName: authorName,
	}
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// ensureAccount lazily creates the publishing account on first use.
func (c *Client) ensureAccount(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	params := url.Values{}
	params.Set("short_name", c.shortName)
	params.Set("author_name", c.authorName)

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.call(ctx, "createAccount", params, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("telegraph: empty access token")
	}

	c.token = result.AccessToken
	return c.token, nil
}

// CreatePage publishes a listing's full description and returns the page
// URL.
func (c *Client) CreatePage(ctx context.Context, l *models.Listing, description string) (string, error) {
	token, err := c.ensureAccount(ctx)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("%s in %s", l.FormattedRooms(), cityOrRegion(l))
	if len(title) > 256 {
		title = title[:253] + "..."
	}

	content, err := json.Marshal(pageNodes(l, description))
	if err != nil {
		return "", fmt.Errorf("telegraph: marshal content: %w", err)
	}

	params := url.Values{}
	params.Set("access_token", token)
	params.Set("title", title)
	params.Set("author_name", c.authorName)
	params.Set("content", string(content))

	var result struct {
		Path string `json:"path"`
	}
	if err := c.call(ctx, "createPage", params, &result); err != nil {
		return "", err
	}
	if result.Path == "" {
		return "", fmt.Errorf("telegraph: empty page path")
	}

	return "https://telegra.ph/" + result.Path, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("telegraph: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegraph: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegraph: decode %s: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegraph: %s: %s", method, envelope.Error)
	}

	return json.Unmarshal(envelope.Result, out)
}

// pageNodes builds the Telegraph DOM for a listing page.
func pageNodes(l *models.Listing, description string) []any {
	nodes := []any{
		node("h3", l.FullAddress()),
		node("p", "Price: "+l.FormattedPrice()),
	}
	if l.LivingSpace != nil {
		nodes = append(nodes, node("p", "Surface: "+l.FormattedSurface()))
	}
	if l.AvailabilityDate != "" {
		nodes = append(nodes, node("p", "Available from: "+l.AvailabilityDate))
	}
	nodes = append(nodes, node("hr", ""), node("h4", "Description"))

	for _, para := range strings.Split(description, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			nodes = append(nodes, node("p", para))
		}
	}

	if l.AgencyName != "" || l.AgencyPhone != "" || l.AgencyEmail != "" {
		nodes = append(nodes, node("hr", ""))
		if l.AgencyName != "" {
			nodes = append(nodes, node("p", "Agency: "+l.AgencyName))
		}
		if l.AgencyPhone != "" {
			nodes = append(nodes, node("p", "Phone: "+l.AgencyPhone))
		}
		if l.AgencyEmail != "" {
			nodes = append(nodes, node("p", "Email: "+l.AgencyEmail))
		}
	}

	return nodes
}

func node(tag, text string) map[string]any {
	n := map[string]any{"tag": tag}
	if text != "" {
		n["children"] = []any{html.UnescapeString(text)}
	}
	return n
}

func cityOrRegion(l *models.Listing) string {
	if l.City != "" {
		return l.City
	}
	if l.State != "" {
		return l.State
	}
	return "Ticino"
}
