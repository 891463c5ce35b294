package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/symbol"
)

// BarHandler exposes the target bar store.
type BarHandler struct {
	bars   domain.BarStore
	logger *slog.Logger
}

// NewBarHandler creates a BarHandler.
func NewBarHandler(bars domain.BarStore, logger *slog.Logger) *BarHandler {
	return &BarHandler{bars: bars, logger: logger}
}

type barJSON struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Turnover float64 `json:"turnover"`
}

// ListSymbols returns every vt_symbol with daily bars.
// GET /api/bars
func (h *BarHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	syms, err := h.bars.ListVTSymbols(r.Context(), domain.IntervalDaily)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list vt_symbols failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vt_symbols": syms})
}

// GetBars returns bars for one vt_symbol in ascending time order.
// GET /api/bars/{vt_symbol}?start=&end=&limit=&offset=
func (h *BarHandler) GetBars(w http.ResponseWriter, r *http.Request) {
	info, err := symbol.Normalize(r.PathValue("vt_symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD")
		return
	}

	bars, err := h.bars.LoadBars(r.Context(), info.Code, info.Exchange, domain.IntervalDaily, opts)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.ErrorContext(r.Context(), "handler: load bars failed",
			slog.String("vt_symbol", info.VTSymbol()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load bars")
		return
	}

	out := make([]barJSON, len(bars))
	for i, b := range bars {
		out[i] = barJSON{
			Datetime: b.Datetime.In(domain.Shanghai).Format(time.RFC3339),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Turnover: b.Turnover,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vt_symbol": info.VTSymbol(),
		"bars":      out,
	})
}
