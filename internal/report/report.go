// Package report renders backtest results into JSON and CSV artifacts and
// uploads them through a domain.BlobWriter.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ashare-quant/internal/backtest"
	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

const (
	contentJSON = "application/json"
	contentCSV  = "text/csv"

	moneyPlaces = 2
	ratioPlaces = 6
)

var dailyHeader = []string{"date", "capital", "position_value", "total_value", "position", "return", "cum_return"}

var tradeHeader = []string{"trade_id", "order_id", "vt_symbol", "direction", "price", "volume", "notional", "commission", "datetime"}

// Summary is the JSON document written for each backtest run.
type Summary struct {
	RunID          string          `json:"run_id"`
	Strategy       string          `json:"strategy"`
	VTSymbol       string          `json:"vt_symbol"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Days           int             `json:"days"`
	TradeCount     int             `json:"trade_count"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalValue     decimal.Decimal `json:"final_value"`
	TotalReturn    decimal.Decimal `json:"total_return"`
	AnnualReturn   decimal.Decimal `json:"annual_return"`
	Volatility     decimal.Decimal `json:"volatility"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
}

// Artifacts lists the paths written for one run.
type Artifacts struct {
	Summary string
	Daily   string
	Trades  string
}

// Writer uploads backtest artifacts under prefix/<run_id>/.
type Writer struct {
	blob   domain.BlobWriter
	prefix string
	logger *slog.Logger
}

// NewWriter creates a Writer. prefix defaults to "backtests".
func NewWriter(blob domain.BlobWriter, prefix string, logger *slog.Logger) *Writer {
	if prefix == "" {
		prefix = "backtests"
	}
	return &Writer{
		blob:   blob,
		prefix: prefix,
		logger: logger.With(slog.String("component", "report")),
	}
}

// WriteBacktest renders res and uploads summary.json, daily.csv and trades.csv.
func (w *Writer) WriteBacktest(ctx context.Context, res *backtest.Result) (Artifacts, error) {
	dir := path.Join(w.prefix, res.RunID)
	arts := Artifacts{
		Summary: path.Join(dir, "summary.json"),
		Daily:   path.Join(dir, "daily.csv"),
		Trades:  path.Join(dir, "trades.csv"),
	}

	summary, err := json.MarshalIndent(Summarize(res), "", "  ")
	if err != nil {
		return Artifacts{}, fmt.Errorf("report: marshal summary: %w", err)
	}
	daily, err := DailyCSV(res.Daily)
	if err != nil {
		return Artifacts{}, err
	}
	trades, err := TradesCSV(res.Trades)
	if err != nil {
		return Artifacts{}, err
	}

	uploads := []struct {
		path, contentType string
		body              []byte
	}{
		{arts.Summary, contentJSON, summary},
		{arts.Daily, contentCSV, daily},
		{arts.Trades, contentCSV, trades},
	}
	for _, u := range uploads {
		if err := w.blob.Put(ctx, u.path, bytes.NewReader(u.body), u.contentType); err != nil {
			return Artifacts{}, fmt.Errorf("report: upload %s: %w", u.path, err)
		}
	}

	w.logger.Info("backtest report written",
		slog.String("run_id", res.RunID),
		slog.String("summary", arts.Summary),
		slog.Int("days", len(res.Daily)),
		slog.Int("trades", len(res.Trades)),
	)
	return arts, nil
}

// Summarize converts a result into its rounded summary document.
func Summarize(res *backtest.Result) Summary {
	s := Summary{
		RunID:          res.RunID,
		Strategy:       res.Strategy,
		VTSymbol:       res.VTSymbol,
		Days:           res.Stats.Days,
		TradeCount:     res.Stats.TradeCount,
		InitialCapital: money(res.Stats.InitialCapital),
		FinalValue:     money(res.Stats.FinalValue),
		TotalReturn:    ratio(res.Stats.TotalReturn),
		AnnualReturn:   ratio(res.Stats.AnnualReturn),
		Volatility:     ratio(res.Stats.Volatility),
		SharpeRatio:    ratio(res.Stats.SharpeRatio),
		MaxDrawdown:    ratio(res.Stats.MaxDrawdown),
	}
	if n := len(res.Daily); n > 0 {
		s.StartDate = res.Daily[0].Date
		s.EndDate = res.Daily[n-1].Date
	}
	return s
}

// DailyCSV renders the equity curve.
func DailyCSV(days []backtest.DailyResult) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(dailyHeader); err != nil {
		return nil, fmt.Errorf("report: daily csv: %w", err)
	}
	for _, d := range days {
		row := []string{
			d.Date,
			money(d.Capital).StringFixed(moneyPlaces),
			money(d.PositionValue).StringFixed(moneyPlaces),
			money(d.TotalValue).StringFixed(moneyPlaces),
			strconv.FormatInt(d.Position, 10),
			ratio(d.Return).StringFixed(ratioPlaces),
			ratio(d.CumReturn).StringFixed(ratioPlaces),
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("report: daily csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("report: daily csv: %w", err)
	}
	return buf.Bytes(), nil
}

// TradesCSV renders the fill log.
func TradesCSV(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(tradeHeader); err != nil {
		return nil, fmt.Errorf("report: trades csv: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			t.OrderID,
			t.VTSymbol,
			string(t.Direction),
			money(t.Price).StringFixed(moneyPlaces),
			strconv.FormatInt(t.Volume, 10),
			money(t.Notional()).StringFixed(moneyPlaces),
			money(t.Commission).StringFixed(moneyPlaces),
			t.Timestamp.In(domain.Shanghai).Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("report: trades csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("report: trades csv: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(moneyPlaces)
}

func ratio(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(ratioPlaces)
}
