package flatfox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flatwatch/config"
	"flatwatch/models"
)

const userAgent = "flatwatch/1.0"

// Client talks to the Flatfox public listing API. The API accepts the
// documented filter parameters but routinely ignores them, so callers must
// treat every response as unfiltered and re-apply constraints locally.
type Client struct {
	cfg    config.SourceConfig
	client *http.Client
	pacing time.Duration
}

func NewClient(cfg config.SourceConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		cfg:    cfg,
		client: httpClient,
		pacing: time.Duration(cfg.RateLimitMS) * time.Millisecond,
	}
}

// SearchResponse is the paged envelope the API wraps results in.
type SearchResponse struct {
	Count    int                 `json:"count"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
	Results  []models.RawListing `json:"results"`
}

// FetchPage requests one page. The region is sent as the documented state
// parameter, purely as a hint; the response is not trusted to honor it.
func (c *Client) FetchPage(ctx context.Context, limit, offset int) (*SearchResponse, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("state", c.cfg.Region)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flatfox API error %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode offset %d: %w", offset, err)
	}

	return &result, nil
}

// FetchBatch accumulates pages from offset 0 until targetSize listings are
// collected or a short page signals exhaustion. A failed page aborts further
// paging and returns what was accumulated; an error is returned only when no
// page succeeded at all.
func (c *Client) FetchBatch(ctx context.Context, targetSize int) ([]models.RawListing, error) {
	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []models.RawListing
	for offset := 0; len(all) < targetSize; offset += pageSize {
		if offset > 0 && c.pacing > 0 {
			select {
			case <-time.After(c.pacing):
			case <-ctx.Done():
				if len(all) == 0 {
					return nil, ctx.Err()
				}
				return all, nil
			}
		}

		page, err := c.FetchPage(ctx, pageSize, offset)
		if err != nil {
			if len(all) == 0 {
				return nil, fmt.Errorf("bulk fetch: %w", err)
			}
			log.Printf("Flatfox: page at offset %d failed, keeping %d listings: %v", offset, len(all), err)
			return all, nil
		}

		all = append(all, page.Results...)
		log.Printf("Flatfox: offset %d: %d listings (total: %d)", offset, len(page.Results), len(all))

		if len(page.Results) < pageSize {
			log.Printf("Flatfox: short page, source exhausted")
			break
		}
	}

	if len(all) > targetSize {
		all = all[:targetSize]
	}
	return all, nil
}

// GetByID fetches a single listing by pk. A missing listing is (nil, nil),
// not an error.
func (c *Client) GetByID(ctx context.Context, pk int64) (models.RawListing, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("pk", strconv.FormatInt(pk, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pk %d: %w", pk, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flatfox API error %d", resp.StatusCode)
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode pk %d: %w", pk, err)
	}

	if len(result.Results) == 0 {
		return nil, nil
	}
	return result.Results[0], nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.FetchPage(ctx, 1, 0)
	return err
}
