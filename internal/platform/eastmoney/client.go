// Package eastmoney is a client for the public EastMoney daily kline API.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
)

// DefaultBaseURL is the kline history host.
const DefaultBaseURL = "https://push2his.eastmoney.com"

const (
	klinePath  = "/api/qt/stock/kline/get"
	dailyKLT   = "101"
	maxRecords = "10000"
	userAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Adjust selects the price adjustment applied by the provider.
type Adjust string

const (
	AdjustNone     Adjust = ""
	AdjustForward  Adjust = "qfq"
	AdjustBackward Adjust = "hfq"
)

// ParseAdjust validates an adjustment name. "none" is accepted for AdjustNone.
func ParseAdjust(s string) (Adjust, error) {
	switch a := Adjust(strings.ToLower(strings.TrimSpace(s))); a {
	case AdjustNone, AdjustForward, AdjustBackward:
		return a, nil
	case "none":
		return AdjustNone, nil
	}
	return "", &domain.ConfigError{Field: "collector.adjust", Value: s}
}

func (a Adjust) fqt() string {
	switch a {
	case AdjustForward:
		return "1"
	case AdjustBackward:
		return "2"
	}
	return "0"
}

// Client fetches daily klines. Volumes are returned as reported, in lots.
type Client struct {
	baseURL    string
	adjust     Adjust
	httpClient *http.Client
}

// NewClient creates a client for baseURL with the given adjustment.
func NewClient(baseURL string, adjust Adjust) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		adjust:  adjust,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Market int      `json:"market"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchDaily returns the daily rows of code between start and end inclusive.
// Dates are YYYY-MM-DD. An unknown code yields no rows.
func (c *Client) FetchDaily(ctx context.Context, code, start, end string) ([]domain.DailyRow, error) {
	ex, err := symbol.InferExchange(code)
	if err != nil {
		return nil, fmt.Errorf("eastmoney: %w", err)
	}

	params := url.Values{}
	params.Set("secid", secID(ex, code))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	params.Set("klt", dailyKLT)
	params.Set("fqt", c.adjust.fqt())
	params.Set("beg", compactDate(start))
	params.Set("end", compactDate(end))
	params.Set("lmt", maxRecords)

	body, err := c.doGet(ctx, klinePath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("eastmoney: klines %s: %w", code, err)
	}

	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("eastmoney: decode klines %s: %w", code, err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	rows := make([]domain.DailyRow, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		row, err := parseKline(code, line)
		if err != nil {
			return nil, fmt.Errorf("eastmoney: %s: %w", code, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func secID(ex domain.Exchange, code string) string {
	if ex == domain.ExchangeSSE {
		return "1." + code
	}
	return "0." + code
}

func compactDate(d string) string {
	if d == "" {
		return "20500101"
	}
	return strings.ReplaceAll(d, "-", "")
}

// parseKline decodes one comma-separated kline: date, open, close, high,
// low, volume, amount, amplitude, change %, change, turnover rate.
func parseKline(code, line string) (domain.DailyRow, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 7 {
		return domain.DailyRow{}, fmt.Errorf("short kline %q", line)
	}

	var nums [6]float64
	for i := range nums {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return domain.DailyRow{}, fmt.Errorf("kline %q field %d: %w", line, i+1, err)
		}
		nums[i] = v
	}
	row := domain.DailyRow{
		Symbol: code,
		Date:   parts[0],
		Open:   nums[0],
		Close:  nums[1],
		High:   nums[2],
		Low:    nums[3],
		Volume: nums[4],
		Amount: &nums[5],
	}
	if len(parts) > 10 {
		if v, err := strconv.ParseFloat(parts[10], 64); err == nil {
			row.TurnoverRate = &v
		}
	}
	return row, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
