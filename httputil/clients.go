package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Listing *http.Client // listing API calls
	Media   *http.Client // photo downloads
	API     *http.Client // telegraph and other direct APIs
}

func NewClients() *Clients {
	return &Clients{
		Listing: &http.Client{Timeout: 10 * time.Second},
		Media:   &http.Client{Timeout: 60 * time.Second},
		API:     &http.Client{Timeout: 30 * time.Second},
	}
}
