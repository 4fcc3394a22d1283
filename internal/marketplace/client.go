package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultContentBase    = "https://content-api.wildberries.ru"
	defaultAnalyticsBase  = "https://seller-analytics-api.wildberries.ru"
	defaultStatisticsBase = "https://statistics-api.wildberries.ru"
	defaultAdvertBase     = "https://advert-api.wildberries.ru"

	requestTimeout = 10 * time.Second
)

// ErrTooManyRequests signals a 429. Callers pause the offending limiter.
var ErrTooManyRequests = errors.New("marketplace: too many requests")

// ErrNoData signals a 400, which the seller API uses for empty result sets.
var ErrNoData = errors.New("marketplace: no data")

// StatusError is any other non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace: unexpected status %d: %s", e.Code, e.Body)
}

// Client is a per-store seller API client. One instance per leased store,
// carrying that store's API token.
type Client struct {
	http  *http.Client
	token string

	contentBase    string
	analyticsBase  string
	statisticsBase string
	advertBase     string
}

type Option func(*Client)

// WithBaseURL points every API family at one base. Used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.contentBase = base
		c.analyticsBase = base
		c.statisticsBase = base
		c.advertBase = base
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{Timeout: requestTimeout},
		token:          token,
		contentBase:    defaultContentBase,
		analyticsBase:  defaultAnalyticsBase,
		statisticsBase: defaultStatisticsBase,
		advertBase:     defaultAdvertBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	// The API accepts the raw JWT with or without a Bearer prefix; the raw
	// form is used uniformly for every endpoint family.
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return ErrNoData
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrTooManyRequests
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CardsPage fetches one page of the product catalogue.
func (c *Client) CardsPage(ctx context.Context, cursor CardsCursor) (*CardsPage, error) {
	body := map[string]interface{}{
		"settings": map[string]interface{}{
			"cursor": cursor,
			"filter": map[string]interface{}{"withPhoto": -1},
		},
	}
	var page CardsPage
	if err := c.do(ctx, http.MethodPost, c.contentBase+"/content/v2/get/cards/list", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// NmReportPage fetches one page of per-product statistics for a single date.
func (c *Client) NmReportPage(ctx context.Context, date time.Time, page int) (*NmReportPage, error) {
	day := date.Format("2006-01-02")
	body := map[string]interface{}{
		"period": map[string]string{
			"begin": day + " 00:00:00",
			"end":   day + " 23:59:59",
		},
		// A stable sort keeps the isNextPage walk consistent between pages.
		"orderBy": map[string]string{"field": "openCard", "mode": "desc"},
		"page":    page,
	}
	var out NmReportPage
	if err := c.do(ctx, http.MethodPost, c.analyticsBase+"/api/v2/nm-report/detail", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StockReport fetches one offset page of the stock report for day.
func (c *Client) StockReport(ctx context.Context, day time.Time, limit, offset int) ([]StockItem, error) {
	d := day.Format("2006-01-02")
	body := map[string]interface{}{
		"currentPeriod": map[string]string{"start": d, "end": d},
		"stockType":     "",
		"skipDeletedNm": true,
		"availabilityFilters": []string{
			"actual", "balanced", "deficient", "nonActual", "nonLiquid", "invalidData",
		},
		"orderBy": map[string]string{"field": "avgOrders", "mode": "asc"},
		"limit":   limit,
		"offset":  offset,
	}
	var out stockReportResponse
	if err := c.do(ctx, http.MethodPost, c.analyticsBase+"/api/v2/stocks-report/products/products", body, &out); err != nil {
		return nil, err
	}
	return out.Data.Items, nil
}

// Sales fetches all sales changed at or after dateFrom.
func (c *Client) Sales(ctx context.Context, dateFrom string) ([]Sale, error) {
	url := fmt.Sprintf("%s/api/v1/supplier/sales?dateFrom=%s&flag=0", c.statisticsBase, dateFrom)
	var out []Sale
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PromotionCount lists every campaign the store has, flattened across buckets.
func (c *Client) PromotionCount(ctx context.Context) ([]AdvertSummary, error) {
	var out promotionCountResponse
	if err := c.do(ctx, http.MethodGet, c.advertBase+"/adv/v1/promotion/count", nil, &out); err != nil {
		return nil, err
	}
	var summaries []AdvertSummary
	for _, bucket := range out.Adverts {
		for _, entry := range bucket.AdvertList {
			summaries = append(summaries, AdvertSummary{
				AdvertID:   entry.AdvertID,
				Type:       bucket.Type,
				Status:     bucket.Status,
				ChangeTime: entry.ChangeTime,
			})
		}
	}
	return summaries, nil
}

// PromotionAdverts fetches details for up to 45 campaign ids.
func (c *Client) PromotionAdverts(ctx context.Context, ids []int64) ([]AdvertDetail, error) {
	var out []AdvertDetail
	if err := c.do(ctx, http.MethodPost, c.advertBase+"/adv/v1/promotion/adverts", ids, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FullStats fetches daily campaign statistics. The payload is capped by the
// API at 100 campaigns and 31 dates per campaign; callers batch accordingly.
func (c *Client) FullStats(ctx context.Context, queries []StatsQuery) ([]AdvertStats, error) {
	var out []AdvertStats
	if err := c.do(ctx, http.MethodPost, c.advertBase+"/adv/v2/fullstats", queries, &out); err != nil {
		return nil, err
	}
	return out, nil
}
