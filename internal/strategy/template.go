package strategy

import (
	"log/slog"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
	"github.com/alanyoungcy/ashare-quant/internal/ledger"
)

// Template carries the state every strategy shares: lifecycle flags, the
// bound submitter and a position mirror updated from fills. Concrete
// strategies embed it and implement OnBar.
type Template struct {
	name     string
	vtSymbol string
	logger   *slog.Logger

	trading   bool
	submitter OrderSubmitter

	position *ledger.Position
	trades   []domain.Trade
	bars     int
}

func newTemplate(name, vtSymbol string, logger *slog.Logger) Template {
	return Template{
		name:     name,
		vtSymbol: vtSymbol,
		logger: logger.With(
			slog.String("strategy", name),
			slog.String("vt_symbol", vtSymbol),
		),
		position: ledger.NewPosition(vtSymbol),
	}
}

func (t *Template) Name() string     { return t.name }
func (t *Template) VTSymbol() string { return t.vtSymbol }
func (t *Template) Trading() bool    { return t.trading }

// Bind attaches the order capability of the execution engine.
func (t *Template) Bind(s OrderSubmitter) { t.submitter = s }

// Init is called once before the first bar.
func (t *Template) Init() error {
	t.logger.Info("strategy initialized")
	return nil
}

// Start enables order submission.
func (t *Template) Start() {
	t.trading = true
	t.logger.Info("strategy started")
}

// Stop disables order submission.
func (t *Template) Stop() {
	t.trading = false
	t.logger.Info("strategy stopped",
		slog.Int("bars", t.bars),
		slog.Int("trades", len(t.trades)),
		slog.Int64("pos", t.Pos()),
	)
}

// Pos is the cached signed position size.
func (t *Template) Pos() int64 { return t.position.Volume }

// Position returns a copy of the mirrored position.
func (t *Template) Position() ledger.Position { return *t.position.Clone() }

// Trades returns the fills received so far.
func (t *Template) Trades() []domain.Trade {
	return append([]domain.Trade(nil), t.trades...)
}

// OnTrade books a fill into the position mirror. Lockups from earlier
// trading dates are released first, as in the engine's ledger.
func (t *Template) OnTrade(trade domain.Trade) {
	t.trades = append(t.trades, trade)
	date := trade.Timestamp.In(domain.Shanghai).Format("2006-01-02")
	t.position.Settle(date)
	t.position.Apply(trade.Direction, trade.Price, trade.Volume, date)
}

// Buy opens or adds to a long position.
func (t *Template) Buy(price float64, volume int64) string {
	return t.send(domain.DirectionLong, price, volume)
}

// Sell closes long shares.
func (t *Template) Sell(price float64, volume int64) string {
	return t.send(domain.DirectionShort, price, volume)
}

// Short opens a short position.
func (t *Template) Short(price float64, volume int64) string {
	return t.send(domain.DirectionShort, price, volume)
}

// Cover buys back a short position.
func (t *Template) Cover(price float64, volume int64) string {
	return t.send(domain.DirectionLong, price, volume)
}

// CancelAll cancels orders still pending in the engine.
func (t *Template) CancelAll() int {
	if t.submitter == nil {
		return 0
	}
	return t.submitter.CancelAll()
}

func (t *Template) send(dir domain.Direction, price float64, volume int64) string {
	if !t.trading {
		t.logger.Warn("order ignored, strategy not trading")
		return ""
	}
	if volume <= 0 {
		t.logger.Warn("order ignored, volume must be positive", slog.Int64("volume", volume))
		return ""
	}
	if t.submitter == nil {
		t.logger.Error("order ignored, no submitter bound")
		return ""
	}
	return t.submitter.Submit(t.vtSymbol, dir, price, volume)
}

// countBar is called by concrete strategies at the top of OnBar.
func (t *Template) countBar() { t.bars++ }
