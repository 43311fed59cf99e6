package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// ErrFlowUnavailable is returned when the exchange has not published
// investor flow data yet (it appears after the 15:30 close).
var ErrFlowUnavailable = errors.New("investor flow not yet available")

// Config holds KIS OpenAPI client configuration
type Config struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	CANO      string // first 8 digits of the account number
	PRDT      string // account product code
	Timeout   time.Duration
	Log       zerolog.Logger
}

// Client for the KIS OpenAPI REST endpoints
type Client struct {
	baseURL   string
	appKey    string
	appSecret string
	cano      string
	prdt      string
	client    *http.Client
	log       zerolog.Logger
}

// NewClient creates a new KIS OpenAPI client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		cano:      cfg.CANO,
		prdt:      cfg.PRDT,
		client:    &http.Client{Timeout: timeout},
		log:       cfg.Log.With().Str("client", "kis").Logger(),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate issues a fresh access token via /oauth2/tokenP
func (c *Client) Authenticate(ctx context.Context) (string, time.Duration, error) {
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	}

	raw, err := c.postJSON(ctx, "/oauth2/tokenP", body)
	if err != nil {
		return "", 0, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", 0, domain.E(domain.KindUpstream, "kis.auth", err)
	}
	if tok.AccessToken == "" {
		return "", 0, domain.Errorf(domain.KindAuth, "kis.auth", "no access_token in response: %s", truncate(raw))
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return tok.AccessToken, ttl, nil
}

type balanceLine struct {
	Code          string `json:"pdno"`
	Name          string `json:"prdt_name"`
	Quantity      string `json:"hldg_qty"`
	AvgPrice      string `json:"pchs_avg_pric"`
	CurrentPrice  string `json:"prpr"`
	MarketValue   string `json:"evlu_amt"`
	UnrealizedPnL string `json:"evlu_pfls_amt"`
	PnLPct        string `json:"evlu_pfls_rt"`
}

type balanceResponse struct {
	ReturnCode string        `json:"rt_cd"`
	Message    string        `json:"msg1"`
	Output1    []balanceLine `json:"output1"`
}

// FetchHoldings returns the current holdings snapshot (TR TTTC8434R).
// Closed positions (zero quantity) are excluded; a malformed line is
// logged and skipped without failing the whole snapshot.
func (c *Client) FetchHoldings(ctx context.Context, token string) (domain.Snapshot, error) {
	params := url.Values{
		"CANO":                  {c.cano},
		"ACNT_PRDT_CD":          {c.prdt},
		"AFHR_FLPR_YN":          {"N"},
		"OFL_YN":                {""},
		"INQR_DVSN":             {"02"},
		"UNPR_DVSN":             {"01"},
		"FUND_STTL_ICLD_YN":     {"N"},
		"FNCG_AMT_AUTO_RDPT_YN": {"N"},
		"PRCS_DVSN":             {"01"},
		"CTX_AREA_FK100":        {""},
		"CTX_AREA_NK100":        {""},
	}

	raw, err := c.get(ctx, "/uapi/domestic-stock/v1/trading/inquire-balance", "TTTC8434R", token, params)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var resp balanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Snapshot{}, domain.E(domain.KindUpstream, "kis.holdings", err)
	}
	if resp.ReturnCode != "0" {
		return domain.Snapshot{}, domain.Errorf(domain.KindUpstream, "kis.holdings", "rt_cd=%s: %s", resp.ReturnCode, resp.Message)
	}

	var snap domain.Snapshot
	for _, item := range resp.Output1 {
		line, err := parseLine(item)
		if err != nil {
			c.log.Warn().Err(err).Str("code", item.Code).Str("name", item.Name).Msg("Skipping malformed holding line")
			continue
		}
		if line.Quantity == 0 {
			continue
		}
		snap.Lines = append(snap.Lines, line)
	}

	return snap, nil
}

func parseLine(item balanceLine) (domain.HoldingLine, error) {
	if item.Code == "" {
		return domain.HoldingLine{}, domain.Errorf(domain.KindParse, "kis.holdings", "missing pdno")
	}
	qty, err := parseInt(item.Quantity)
	if err != nil {
		return domain.HoldingLine{}, domain.E(domain.KindParse, "kis.holdings", fmt.Errorf("hldg_qty %q: %w", item.Quantity, err))
	}
	avg, err := parseFloat(item.AvgPrice)
	if err != nil {
		return domain.HoldingLine{}, domain.E(domain.KindParse, "kis.holdings", fmt.Errorf("pchs_avg_pric %q: %w", item.AvgPrice, err))
	}
	cur, err := parseFloat(item.CurrentPrice)
	if err != nil {
		return domain.HoldingLine{}, domain.E(domain.KindParse, "kis.holdings", fmt.Errorf("prpr %q: %w", item.CurrentPrice, err))
	}

	line := domain.HoldingLine{
		Code:         item.Code,
		Name:         item.Name,
		Quantity:     qty,
		AvgPrice:     avg,
		CurrentPrice: cur,
	}

	// Upstream valuation fields are optional; the differ derives them when zero
	line.MarketValue, _ = parseFloat(item.MarketValue)
	line.UnrealizedPnL, _ = parseFloat(item.UnrealizedPnL)
	line.UnrealizedPnLPct, _ = parseFloat(item.PnLPct)

	return line, nil
}

// NetFlow is one day of investor net buying for an instrument
type NetFlow struct {
	Foreign       int64
	Institutional int64
}

// Total returns the combined foreign + institutional net quantity
func (f NetFlow) Total() int64 {
	return f.Foreign + f.Institutional
}

type investorResponse struct {
	ReturnCode string `json:"rt_cd"`
	Message    string `json:"msg1"`
	Output     []struct {
		Foreign       string `json:"frgn_ntby_qty"`
		Institutional string `json:"orgn_ntby_qty"`
	} `json:"output"`
}

// FetchNetFlow returns today's net investor flow for one instrument
// (TR FHKST01010900). Returns ErrFlowUnavailable before the exchange
// publishes the day's data.
func (c *Client) FetchNetFlow(ctx context.Context, token, code string) (NetFlow, error) {
	params := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_INPUT_ISCD":         {code},
	}

	raw, err := c.get(ctx, "/uapi/domestic-stock/v1/quotations/inquire-investor", "FHKST01010900", token, params)
	if err != nil {
		return NetFlow{}, err
	}

	var resp investorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return NetFlow{}, domain.E(domain.KindUpstream, "kis.flow", err)
	}
	if resp.ReturnCode != "0" {
		return NetFlow{}, domain.Errorf(domain.KindUpstream, "kis.flow", "rt_cd=%s: %s", resp.ReturnCode, resp.Message)
	}
	if len(resp.Output) == 0 {
		return NetFlow{}, ErrFlowUnavailable
	}

	latest := resp.Output[0]
	frgn, errF := parseInt(latest.Foreign)
	inst, errI := parseInt(latest.Institutional)
	if errF != nil && errI != nil {
		return NetFlow{}, ErrFlowUnavailable
	}

	return NetFlow{Foreign: frgn, Institutional: inst}, nil
}

type fillsResponse struct {
	ReturnCode string `json:"rt_cd"`
	Message    string `json:"msg1"`
	Output     []struct {
		OrderID  string `json:"odno"`
		Side     string `json:"sll_buy_dvsn_cd"` // 02 = buy, 01 = sell
		Code     string `json:"pdno"`
		Name     string `json:"prdt_name"`
		Quantity string `json:"tot_ccld_qty"`
		Price    string `json:"ord_unpr"`
	} `json:"output"`
}

// FetchTodayFills returns today's executed orders (TR TTTC8001R)
func (c *Client) FetchTodayFills(ctx context.Context, token string, day time.Time) ([]domain.Fill, error) {
	date := day.Format("20060102")
	params := url.Values{
		"CANO":            {c.cano},
		"ACNT_PRDT_CD":    {c.prdt},
		"INQR_STRT_DT":    {date},
		"INQR_END_DT":     {date},
		"SLL_BUY_DVSN_CD": {"00"},
		"INQR_DVSN":       {"00"},
		"INQR_DVSN_1":     {"1"},
		"PDNO":            {""},
		"CCLD_DVSN":       {"00"},
		"ORD_GNO_BRNO":    {""},
		"ODNO":            {""},
		"INQR_DVSN_3":     {"00"},
		"CTX_AREA_FK100":  {""},
		"CTX_AREA_NK100":  {""},
	}

	raw, err := c.get(ctx, "/uapi/domestic-stock/v1/trading/inquire-daily-ccld", "TTTC8001R", token, params)
	if err != nil {
		return nil, err
	}

	var resp fillsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.E(domain.KindUpstream, "kis.fills", err)
	}
	if resp.ReturnCode != "0" {
		return nil, domain.Errorf(domain.KindUpstream, "kis.fills", "rt_cd=%s: %s", resp.ReturnCode, resp.Message)
	}

	var fills []domain.Fill
	for _, o := range resp.Output {
		if o.OrderID == "" {
			continue
		}
		qty, err := parseInt(o.Quantity)
		if err != nil {
			c.log.Warn().Err(err).Str("odno", o.OrderID).Msg("Skipping malformed fill")
			continue
		}
		price, _ := parseFloat(o.Price)

		side := "SELL"
		if o.Side == "02" {
			side = "BUY"
		}
		fills = append(fills, domain.Fill{
			OrderID:  o.OrderID,
			Code:     o.Code,
			Name:     o.Name,
			Side:     side,
			Quantity: qty,
			Price:    price,
		})
	}

	return fills, nil
}

// get makes an authenticated GET request with the TR id headers
func (c *Client) get(ctx context.Context, path, trID, token string, params url.Values) ([]byte, error) {
	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("authorization", "Bearer "+token)
		req.Header.Set("appkey", c.appKey)
		req.Header.Set("appsecret", c.appSecret)
		req.Header.Set("tr_id", trID)
		return req, nil
	})
}

// postJSON makes an unauthenticated POST request with a JSON body
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// doWithRetry retries transport failures with linear backoff. Application
// level failures (a parsed body with rt_cd != "0") are never retried here;
// callers surface them as upstream errors.
func (c *Client) doWithRetry(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err == nil {
			raw, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil && resp.StatusCode < http.StatusInternalServerError {
				return raw, nil
			}
			if readErr != nil {
				err = readErr
			} else {
				err = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw))
			}
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("Request failed, retrying")
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return nil, domain.E(domain.KindUpstream, "kis.request", ctx.Err())
		}
	}
	return nil, domain.E(domain.KindUpstream, "kis.request", lastErr)
}

// parseInt parses a KIS numeric string, tolerating thousands separators
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseFloat parses a KIS decimal string, tolerating thousands separators
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseFloat(s, 64)
}

func truncate(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
