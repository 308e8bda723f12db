package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawListing is a listing exactly as the upstream API returned it. No field
// is guaranteed to exist, be non-null, or have the documented type, so all
// access goes through the coercing helpers below.
type RawListing map[string]any

// PK returns the listing identifier. A listing without a usable pk is not
// convertible to a Listing.
func (r RawListing) PK() (int64, bool) {
	f, ok := r.Number("pk")
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// String returns the value under key as a string, or "" when the key is
// absent, null, or not a string.
func (r RawListing) String(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Number returns the value under key as a float64. Numeric strings and
// json.Number values are coerced; anything else reports false.
func (r RawListing) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Object returns a nested object under key, or nil.
func (r RawListing) Object(key string) RawListing {
	if m, ok := r[key].(map[string]any); ok {
		return RawListing(m)
	}
	return nil
}

// Array returns a nested array under key, or nil.
func (r RawListing) Array(key string) []any {
	if a, ok := r[key].([]any); ok {
		return a
	}
	return nil
}

// imageURLKeys is the ordered list of keys an image object may carry its URL
// under. First present key wins.
var imageURLKeys = []string{"url", "url_original", "url_large"}

const imageHost = "https://flatfox.ch"

// Images extracts absolute image URLs from the listing's images array.
func (r RawListing) Images() []string {
	var urls []string
	for _, item := range r.Array("images") {
		img, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url := extractImageURL(RawListing(img))
		if url == "" {
			continue
		}
		if strings.HasPrefix(url, "/") {
			url = imageHost + url
		}
		urls = append(urls, url)
	}
	return urls
}

func extractImageURL(img RawListing) string {
	for _, key := range imageURLKeys {
		if url := img.String(key); url != "" {
			return url
		}
	}
	return ""
}
