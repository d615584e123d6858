package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"truthlink/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GeocodingConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		TimeoutSec:   1,
		SuggestLimit: 3,
	})
}

const sampleBody = `{"features":[
	{"place_name":"Central Station, Amsterdam","center":[4.9003,52.3791]},
	{"place_name":"Central Station, Rotterdam","center":[4.4689,51.9244]}
]}`

func TestResolve(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(sampleBody))
	})
	pt, err := c.Resolve(context.Background(), "Central Station")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pt == nil || pt.Latitude != 52.3791 || pt.Longitude != 4.9003 {
		t.Fatalf("got %+v", pt)
	}
}

func TestResolveNoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	})
	pt, err := c.Resolve(context.Background(), "nowhere at all")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pt != nil {
		t.Fatalf("got %+v, want nil", pt)
	}
}

func TestResolveUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.Resolve(context.Background(), "anywhere"); err == nil {
		t.Fatal("expected error on upstream failure")
	}
}

func TestSuggest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("limit = %s, want 3", got)
		}
		w.Write([]byte(sampleBody))
	})
	got, err := c.Suggest(context.Background(), "Central Station")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d suggestions", len(got))
	}
	if got[0].Label != "Central Station, Amsterdam" || got[0].Latitude != 52.3791 {
		t.Fatalf("first suggestion = %+v", got[0])
	}
}
