package handler

import (
	"errors"
	"net/http"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/paper"
)

// PaperSession is the view of a running paper engine the API needs.
type PaperSession interface {
	Status() paper.Status
	State() paper.State
	Trades() []domain.Trade
	Order(id string) (domain.Order, error)
}

// PaperHandler serves the live paper session.
type PaperHandler struct {
	session PaperSession
}

// NewPaperHandler creates a PaperHandler.
func NewPaperHandler(session PaperSession) *PaperHandler {
	return &PaperHandler{session: session}
}

// GetStatus returns the account snapshot.
// GET /api/paper/status
func (h *PaperHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// GetState returns the persisted-state view including every order.
// GET /api/paper/state
func (h *PaperHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.State())
}

type tradeJSON struct {
	TradeID    string  `json:"trade_id"`
	OrderID    string  `json:"order_id"`
	VTSymbol   string  `json:"vt_symbol"`
	Direction  string  `json:"direction"`
	Price      float64 `json:"price"`
	Volume     int64   `json:"volume"`
	Commission float64 `json:"commission"`
	Datetime   string  `json:"datetime"`
}

// ListTrades returns the session's fills.
// GET /api/paper/trades
func (h *PaperHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades := h.session.Trades()
	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = tradeJSON{
			TradeID:    t.ID,
			OrderID:    t.OrderID,
			VTSymbol:   t.VTSymbol,
			Direction:  string(t.Direction),
			Price:      t.Price,
			Volume:     t.Volume,
			Commission: t.Commission,
			Datetime:   t.Timestamp.In(domain.Shanghai).Format("2006-01-02 15:04:05"),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

// GetOrder returns one order by ID.
// GET /api/paper/orders/{id}
func (h *PaperHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.session.Order(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, paper.NewOrderView(o))
}
