package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name string
	err  error
	got  []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.got = append(r.got, title+"|"+message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventBacktest}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), EventSync, "sync", nil))
	require.Empty(t, s.got)

	require.NoError(t, n.Notify(context.Background(), EventBacktest, "backtest done", map[string]any{
		"trades":       3,
		"total_return": 0.0123456,
	}))
	require.Equal(t, []string{"backtest done|total_return: 0.0123\ntrades: 3"}, s.got)
}

func TestNotifyContinuesPastFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), EventPaper, "paper", map[string]any{"pnl": 1.5})
	require.ErrorContains(t, err, "bad: boom")
	require.Len(t, good.got, 1)
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	require.False(t, n.Enabled())
	require.NoError(t, n.Notify(context.Background(), EventSync, "x", nil))
}

func TestDiscordSender(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "sync", "rows: 10"))
	require.Equal(t, "**sync**\nrows: 10", body["content"])
}

func TestTelegramSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTelegramSender("token", "42")
	s.apiURL = srv.URL
	err := s.Send(context.Background(), "t", "m")
	require.ErrorContains(t, err, "unexpected status 400")
}
