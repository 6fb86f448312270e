// Package fetch retrieves monthly filings from the FNET public document
// API. Searches list the documents filed for a CNPJ; the newest active
// monthly filing is downloaded and base64-decoded into raw XML. Requests
// are paced by a shared rate limiter and retried with backoff on transient
// failures, and both search results and documents are cached on disk.
package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fidcetl/internal/config"
	apperrors "fidcetl/internal/errors"
	"fidcetl/internal/mapper"
	"fidcetl/internal/pipeline"
)

const (
	monthlyFilingType = "Informe Mensal"
	statusActive      = "A"
	backoffBase       = 500 * time.Millisecond
)

// Client talks to the FNET document endpoints.
type Client struct {
	cfg        config.FetchConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *diskCache
	logger     *slog.Logger
}

// NewClient creates a Client from the fetch configuration.
func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:      newDiskCache(cfg.CacheDir, logger),
		logger:     logger,
	}
}

// document is one row of an FNET search result.
type document struct {
	ID            int    `json:"id"`
	Type          string `json:"tipoDocumento"`
	Status        string `json:"situacaoDocumento"`
	ReferenceDate string `json:"dataReferencia"`
	DeliveryDate  string `json:"dataEntrega"`
	FundName      string `json:"descricaoFundo"`
}

type searchResponse struct {
	Data         []document `json:"data"`
	RecordsTotal int        `json:"recordsTotal"`
}

// Fetch finds and downloads the most recent active monthly filing for the
// entry's CNPJ.
func (c *Client) Fetch(ctx context.Context, entry pipeline.Entry) (pipeline.Filing, error) {
	cnpj := mapper.CleanCNPJ(entry.CNPJ)
	if cnpj == "" {
		return pipeline.Filing{}, apperrors.NewFetchError(entry.CNPJ, "search",
			fmt.Errorf("entry has no usable CNPJ"))
	}

	docs, err := c.search(ctx, cnpj)
	if err != nil {
		return pipeline.Filing{}, apperrors.NewFetchError(cnpj, "search", err)
	}

	doc, ok := latestMonthlyFiling(docs)
	if !ok {
		return pipeline.Filing{}, apperrors.NewFetchError(cnpj, "select",
			fmt.Errorf("no active monthly filing among %d documents", len(docs)))
	}

	raw, err := c.download(ctx, doc.ID)
	if err != nil {
		return pipeline.Filing{}, apperrors.NewFetchError(cnpj, "download", err)
	}

	c.logger.DebugContext(ctx, "filing fetched",
		slog.String("cnpj", cnpj),
		slog.Int("document_id", doc.ID),
		slog.String("reference", doc.ReferenceDate))

	return pipeline.Filing{DocumentID: strconv.Itoa(doc.ID), Raw: raw}, nil
}

func (c *Client) search(ctx context.Context, cnpj string) ([]document, error) {
	body, ok := c.cache.readSearch(cnpj)
	if !ok {
		var err error
		body, err = c.get(ctx, c.searchURL(cnpj), c.cfg.SearchTimeout)
		if err != nil {
			return nil, err
		}
		c.cache.writeSearch(cnpj, body)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) searchURL(cnpj string) string {
	q := url.Values{}
	q.Set("d", "0")
	q.Set("s", "0")
	q.Set("l", strconv.Itoa(c.cfg.DocumentLimit))
	q.Set("o[0][dataEntrega]", "desc")
	q.Set("cnpjFundo", cnpj)
	return c.cfg.SearchURL + "?" + q.Encode()
}

// download retrieves one document body. FNET serves documents base64
// encoded; a body already starting with "<" is taken as plain XML.
func (c *Client) download(ctx context.Context, id int) ([]byte, error) {
	key := strconv.Itoa(id)
	if raw, ok := c.cache.readDocument(key); ok {
		return raw, nil
	}

	body, err := c.get(ctx, c.cfg.DownloadURL+"?id="+key, c.cfg.DownloadTimeout)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(body)
	if !bytes.HasPrefix(raw, []byte("<")) {
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", id, err)
		}
		raw = decoded
	}

	c.cache.writeDocument(key, raw)
	return raw, nil
}

// get performs one rate-limited GET with retries on transient failures
// (429, 5xx, transport errors). Client errors other than 429 fail fast.
func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			c.logger.DebugContext(ctx, "retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := c.doOnce(ctx, rawURL, timeout)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}
}

// latestMonthlyFiling picks the active monthly filing with the newest
// reference date; delivery order (then document id) breaks ties.
func latestMonthlyFiling(docs []document) (document, bool) {
	var best document
	var bestRef time.Time
	found := false
	for _, d := range docs {
		if d.Status != statusActive || !strings.EqualFold(d.Type, monthlyFilingType) {
			continue
		}
		ref, ok := parseReferenceDate(d.ReferenceDate)
		if !ok {
			continue
		}
		if !found || ref.After(bestRef) || (ref.Equal(bestRef) && d.ID > best.ID) {
			best, bestRef, found = d, ref, true
		}
	}
	return best, found
}

// parseReferenceDate accepts the two forms FNET uses, MM/YYYY and
// DD/MM/YYYY.
func parseReferenceDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"01/2006", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
