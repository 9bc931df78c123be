// Package client talks to the portfolio server's HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"portfolio-sim-go/internal/auth"
	"portfolio-sim-go/internal/config"
	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/models"
	"portfolio-sim-go/internal/portfolio"
)

const maxRetries = 3

// APIError is an error response returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Title      string `json:"title"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Title, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// SimulatorStatus is the state of the server's price simulator.
type SimulatorStatus struct {
	State string `json:"state"`
	Ticks uint64 `json:"ticks"`
}

// Notice is an acknowledgement the server returns instead of a state change.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RestClient is a client for the portfolio server API.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

// NewRestClient creates a client for the server at cfg.BaseURL.
func NewRestClient(cfg *config.Client, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
		backoff: time.Second,
	}
}

// Health checks that the server is up.
func (c *RestClient) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/health", c.client.R()); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Register creates an account and logs it in.
func (c *RestClient) Register(ctx context.Context, req auth.RegisterRequest) (*models.Profile, error) {
	var out struct {
		User models.Profile `json:"user"`
	}
	r := c.client.R().SetBody(req).SetResult(&out)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", r); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return &out.User, nil
}

// Login starts a session on the server.
func (c *RestClient) Login(ctx context.Context, email, password string, rememberMe bool) (*models.Profile, error) {
	var out struct {
		User models.Profile `json:"user"`
	}
	body := map[string]any{"email": email, "password": password, "rememberMe": rememberMe}
	r := c.client.R().SetBody(body).SetResult(&out)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", r); err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	return &out.User, nil
}

// Logout ends the server session.
func (c *RestClient) Logout(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/auth/logout", c.client.R()); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Markets returns the current quotes.
func (c *RestClient) Markets(ctx context.Context) ([]market.Quote, error) {
	var quotes []market.Quote
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/markets", c.client.R().SetResult(&quotes)); err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}
	return quotes, nil
}

// Portfolio returns the aggregate view of the logged-in account.
func (c *RestClient) Portfolio(ctx context.Context) (*portfolio.View, error) {
	var view portfolio.View
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/portfolio", c.client.R().SetResult(&view)); err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return &view, nil
}

// Transactions returns up to limit transactions, newest first.
func (c *RestClient) Transactions(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	r := c.client.R().SetQueryParam("limit", strconv.Itoa(limit)).SetResult(&txs)
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/transactions", r); err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txs, nil
}

// Invest buys amount worth of symbol.
func (c *RestClient) Invest(ctx context.Context, symbol market.Symbol, amount decimal.Decimal) (*portfolio.Position, error) {
	var pos portfolio.Position
	body := map[string]any{"symbol": symbol, "amount": amount}
	r := c.client.R().SetBody(body).SetResult(&pos)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/invest", r); err != nil {
		return nil, fmt.Errorf("failed to invest in %s: %w", symbol, err)
	}
	return &pos, nil
}

// Sell closes the position in symbol.
func (c *RestClient) Sell(ctx context.Context, symbol market.Symbol) (*portfolio.Position, error) {
	var pos portfolio.Position
	r := c.client.R().SetBody(map[string]any{"symbol": symbol}).SetResult(&pos)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/sell", r); err != nil {
		return nil, fmt.Errorf("failed to sell %s: %w", symbol, err)
	}
	return &pos, nil
}

// Withdraw takes amount of profit out of the account.
func (c *RestClient) Withdraw(ctx context.Context, amount decimal.Decimal) (*portfolio.View, error) {
	var view portfolio.View
	r := c.client.R().SetBody(map[string]any{"amount": amount}).SetResult(&view)
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/withdraw", r); err != nil {
		return nil, fmt.Errorf("failed to withdraw %s: %w", amount, err)
	}
	return &view, nil
}

// Deposit submits a deposit for verification. The balance does not change.
func (c *RestClient) Deposit(ctx context.Context) (*Notice, error) {
	var notice Notice
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/deposit", c.client.R().SetResult(&notice)); err != nil {
		return nil, fmt.Errorf("failed to submit deposit: %w", err)
	}
	return &notice, nil
}

// PreviewInvest reports what amount would buy of symbol at the current price.
func (c *RestClient) PreviewInvest(ctx context.Context, symbol market.Symbol, amount decimal.Decimal) (*portfolio.InvestPreview, error) {
	return c.preview(ctx, symbol, "amount", amount)
}

// PreviewInvestPercent previews investing percent of the cash balance in symbol.
func (c *RestClient) PreviewInvestPercent(ctx context.Context, symbol market.Symbol, percent decimal.Decimal) (*portfolio.InvestPreview, error) {
	return c.preview(ctx, symbol, "percent", percent)
}

func (c *RestClient) preview(ctx context.Context, symbol market.Symbol, param string, value decimal.Decimal) (*portfolio.InvestPreview, error) {
	var p portfolio.InvestPreview
	r := c.client.R().
		SetQueryParam("symbol", symbol.String()).
		SetQueryParam(param, value.String()).
		SetResult(&p)
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/invest/preview", r); err != nil {
		return nil, fmt.Errorf("failed to preview %s investment: %w", symbol, err)
	}
	return &p, nil
}

// Simulator returns the simulator status. action is "", "start" or "stop".
func (c *RestClient) Simulator(ctx context.Context, action string) (*SimulatorStatus, error) {
	var status SimulatorStatus
	method, path := http.MethodGet, "/api/simulator"
	if action != "" {
		method, path = http.MethodPost, path+"/"+action
	}
	if _, err := c.doRequest(ctx, method, path, c.client.R().SetResult(&status)); err != nil {
		return nil, fmt.Errorf("simulator request failed: %w", err)
	}
	return &status, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		var retryAfter time.Duration

		if err == nil {
			// only rate limiting and server errors are retried
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode < 500:
				return nil, decodeAPIError(resp)
			}
			err = decodeAPIError(resp)
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if i == maxRetries-1 {
			break
		}

		// exponential backoff: 1x, 2x, 4x
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func decodeAPIError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if jsonErr := json.Unmarshal(resp.Body(), apiErr); jsonErr != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
