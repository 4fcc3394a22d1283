package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(CardsPage{})
	}))
	defer srv.Close()

	c := NewClient("tok-123", WithBaseURL(srv.URL))
	if _, err := c.CardsPage(context.Background(), CardsCursor{Limit: 100}); err != nil {
		t.Fatalf("cards page: %v", err)
	}
	if gotAuth != "tok-123" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestClientStatusMapping(t *testing.T) {
	var code int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))

	code = http.StatusTooManyRequests
	if _, err := c.Sales(context.Background(), "2025-01-01T00:00:00"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("429 should map to ErrTooManyRequests, got %v", err)
	}

	code = http.StatusBadRequest
	if _, err := c.FullStats(context.Background(), nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("400 should map to ErrNoData, got %v", err)
	}

	code = http.StatusInternalServerError
	_, err := c.PromotionCount(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("500 should map to StatusError, got %v", err)
	}
}

func TestClientNmReportPeriod(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(NmReportPage{})
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	date := time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC)
	if _, err := c.NmReportPage(context.Background(), date, 2); err != nil {
		t.Fatalf("nm report: %v", err)
	}

	period := body["period"].(map[string]interface{})
	if period["begin"] != "2026-08-20 00:00:00" || period["end"] != "2026-08-20 23:59:59" {
		t.Fatalf("period = %v", period)
	}
	if body["page"].(float64) != 2 {
		t.Fatalf("page = %v", body["page"])
	}
	orderBy, ok := body["orderBy"].(map[string]interface{})
	if !ok || orderBy["field"] != "openCard" || orderBy["mode"] != "desc" {
		t.Fatalf("orderBy = %v", body["orderBy"])
	}
}

func TestClientRequestTimeout(t *testing.T) {
	c := NewClient("tok")
	if c.http.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", c.http.Timeout)
	}
}

func TestPromotionCountFlattens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := promotionCountResponse{
			Adverts: []advertCountBucket{
				{Type: 8, Status: 9, AdvertList: []AdvertListEntry{{AdvertID: 1}, {AdvertID: 2}}},
				{Type: 9, Status: 7, AdvertList: []AdvertListEntry{{AdvertID: 3}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	got, err := c.PromotionCount(context.Background())
	if err != nil {
		t.Fatalf("promotion count: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("flattened %d entries, want 3", len(got))
	}
	if got[0].Type != 8 || got[2].AdvertID != 3 || got[2].Status != 7 {
		t.Fatalf("unexpected flatten: %+v", got)
	}
}
