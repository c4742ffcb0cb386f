package source

// HTTP explorer API variant of the transaction source.
// Base transport mirrors the rest of our API clients: rate limiter in front,
// circuit breaker around the request, bounded retry for retryable statuses.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/infra/retry"
	"xsn-monitor/internal/monitor"
)

// ExplorerClient talks to a block explorer's REST API.
type ExplorerClient struct {
	baseURL         string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retryOpts       retry.Options
	maxResponseSize int64
}

// NewExplorerClient builds a client for the explorer API at baseURL.
// requestTimeout is in seconds; maxResponseSize in bytes.
func NewExplorerClient(baseURL string, requestTimeout, maxRetries int, maxResponseSize int64) *ExplorerClient {
	if requestTimeout <= 0 {
		requestTimeout = 30
	}
	if maxResponseSize <= 0 {
		maxResponseSize = 10 * 1024 * 1024
	}

	// 10 rps with a burst of 20 keeps us under typical explorer limits.
	rateLimiter := rate.NewLimiter(rate.Limit(10), 20)

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ExplorerAPI",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ExplorerClient{
		baseURL:        baseURL,
		rateLimiter:    rateLimiter,
		circuitBreaker: circuitBreaker,
		retryOpts: retry.Options{
			MaxRetries: maxRetries,
			BaseDelay:  300 * time.Millisecond,
			MaxDelay:   5 * time.Second,
		},
		maxResponseSize: maxResponseSize,
		httpClient: &http.Client{
			Timeout: time.Duration(requestTimeout) * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: false,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
			},
		},
	}
}

// MakeRequest performs a GET against the API with rate limiting, circuit
// breaking and bounded retries. Non-2xx statuses come back as
// *retry.HTTPError so callers can inspect the code.
func (c *ExplorerClient) MakeRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	var respBody []byte
	err := retry.Do(ctx, c.retryOpts, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		body, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, endpoint)
		})
		if err != nil {
			return err
		}
		respBody = body.([]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *ExplorerClient) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.LogRequest(requestID, http.MethodGet, endpoint, zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", endpoint), zap.Error(err))
		return nil, retry.Transient(fmt.Errorf("failed to perform request: %w", err))
	}
	defer resp.Body.Close()

	limitedReader := io.LimitReader(resp.Body, c.maxResponseSize)
	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		log.LogResponse(requestID, resp.StatusCode, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", endpoint), zap.Error(err))
		return nil, retry.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	duration := time.Since(startTime).Milliseconds()
	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return respBody, nil
}

func unmarshalResponse(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed explorer response: %w", err)
	}
	return nil
}

// addressInfo is the explorer's view of one address.
type addressInfo struct {
	Balance             decimal.Decimal `json:"balance"`
	TotalTransactions   int64           `json:"totalTransactions"`
	LastTransactionTime int64           `json:"lastTransactionTime"`
}

// transactionsResponse wraps the explorer's transaction list.
type transactionsResponse struct {
	Transactions []explorerTransaction `json:"transactions"`
}

type explorerTransaction struct {
	Sent     decimal.Decimal `json:"sent"`
	Received decimal.Decimal `json:"received"`
	Time     int64           `json:"time"`
}

func (c *ExplorerClient) getAddressInfo(ctx context.Context, address string) (*addressInfo, bool, error) {
	body, err := c.MakeRequest(ctx, "/addresses/"+url.PathEscape(address))
	if err != nil {
		var he *retry.HTTPError
		if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to fetch address %s: %w", address, err)
	}

	var info addressInfo
	if err := unmarshalResponse(body, &info); err != nil {
		return nil, false, fmt.Errorf("failed to decode address %s: %w", address, err)
	}
	return &info, true, nil
}

func (c *ExplorerClient) GetBalance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	info, found, err := c.getAddressInfo(ctx, address)
	if err != nil || !found {
		return decimal.Zero, found, err
	}
	return info.Balance, true, nil
}

func (c *ExplorerClient) GetLastWatermark(ctx context.Context, address string) (int64, error) {
	info, found, err := c.getAddressInfo(ctx, address)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return info.LastTransactionTime, nil
}

func (c *ExplorerClient) GetNewTransactions(ctx context.Context, address string, sinceWatermark int64) ([]monitor.Transaction, error) {
	endpoint := "/addresses/" + url.PathEscape(address) + "/transactions?since=" +
		strconv.FormatInt(sinceWatermark, 10)

	body, err := c.MakeRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for %s: %w", address, err)
	}

	var resp transactionsResponse
	if err := unmarshalResponse(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transactions for %s: %w", address, err)
	}

	txs := make([]monitor.Transaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		txs = append(txs, monitor.Transaction{
			Sent:     tx.Sent,
			Received: tx.Received,
			Time:     tx.Time,
		})
	}
	return txs, nil
}
