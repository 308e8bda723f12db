package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flatwatch/models"
)

func testListing() *models.Listing {
	rooms := 3.5
	price := 1850.0
	return &models.Listing{
		PK:        42,
		Rooms:     &rooms,
		Price:     &price,
		PriceUnit: "monthly",
		Street:    "Via Nassa",
		Zipcode:   "6900",
		City:      "Lugano",
	}
}

func TestCreatePage(t *testing.T) {
	var accountCalls, pageCalls int
	var pageToken, pageTitle string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/createAccount":
			accountCalls++
			fmt.Fprint(w, `{"ok":true,"result":{"access_token":"tok123"}}`)
		case "/createPage":
			pageCalls++
			pageToken = r.Form.Get("access_token")
			pageTitle = r.Form.Get("title")

			var content []any
			if err := json.Unmarshal([]byte(r.Form.Get("content")), &content); err != nil {
				t.Errorf("content is not valid JSON: %v", err)
			}
			if len(content) == 0 {
				t.Error("expected page content nodes")
			}

			fmt.Fprint(w, `{"ok":true,"result":{"path":"Flat-in-Lugano-01-01"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "flatwatch", "Flatwatch")
	client.baseURL = srv.URL

	url, err := client.CreatePage(context.Background(), testListing(), "A long description.\n\nSecond paragraph.")
	if err != nil {
		t.Fatalf("create page failed: %v", err)
	}
	if url != "https://telegra.ph/Flat-in-Lugano-01-01" {
		t.Fatalf("unexpected url %s", url)
	}
	if pageToken != "tok123" {
		t.Fatalf("expected page created with account token, got %q", pageToken)
	}
	if !strings.Contains(pageTitle, "Lugano") {
		t.Fatalf("expected city in title, got %q", pageTitle)
	}

	// Second page reuses the account.
	if _, err := client.CreatePage(context.Background(), testListing(), "Another."); err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if accountCalls != 1 {
		t.Fatalf("expected 1 account creation, got %d", accountCalls)
	}
	if pageCalls != 2 {
		t.Fatalf("expected 2 page creations, got %d", pageCalls)
	}
}

func TestCreatePage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"FLOOD_WAIT"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "flatwatch", "Flatwatch")
	client.baseURL = srv.URL

	if _, err := client.CreatePage(context.Background(), testListing(), "text"); err == nil {
		t.Fatal("expected error from API failure")
	}
}
