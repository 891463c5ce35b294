package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

const klineBody = `{"rc":0,"data":{"code":"600519","market":1,"name":"MOUTAI","klines":[
"2024-01-02,1715.00,1685.01,1718.19,1678.10,32156,5425123456.00,2.34,-1.92,-32.99,0.26",
"2024-01-03,1681.11,1694.00,1695.22,1676.33,20850,3519876543.00,1.12,0.53,8.99,0.17"]}}`

func TestFetchDaily(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(klineBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, AdjustForward)
	rows, err := c.FetchDaily(context.Background(), "600519", "2024-01-01", "2024-01-05")
	require.NoError(t, err)

	q := got.URL.Query()
	require.Equal(t, klinePath, got.URL.Path)
	require.Equal(t, "1.600519", q.Get("secid"))
	require.Equal(t, "101", q.Get("klt"))
	require.Equal(t, "1", q.Get("fqt"))
	require.Equal(t, "20240101", q.Get("beg"))
	require.Equal(t, "20240105", q.Get("end"))

	require.Len(t, rows, 2)
	r := rows[0]
	require.Equal(t, "600519", r.Symbol)
	require.Equal(t, "2024-01-02", r.Date)
	require.Equal(t, 1715.00, r.Open)
	require.Equal(t, 1685.01, r.Close)
	require.Equal(t, 1718.19, r.High)
	require.Equal(t, 1678.10, r.Low)
	require.Equal(t, 32156.0, r.Volume)
	require.NotNil(t, r.Amount)
	require.Equal(t, 5425123456.00, *r.Amount)
	require.NotNil(t, r.TurnoverRate)
	require.Equal(t, 0.26, *r.TurnoverRate)
	require.GreaterOrEqual(t, r.High, r.Low)
	require.NotSame(t, rows[0].Amount, rows[1].Amount)
}

func TestFetchDailySZSEAndNoData(t *testing.T) {
	var secid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secid = r.URL.Query().Get("secid")
		_, _ = w.Write([]byte(`{"rc":0,"data":null}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, AdjustNone).FetchDaily(context.Background(), "000001", "2024-01-01", "")
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, "0.000001", secid)
}

func TestFetchDailyErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, AdjustNone)

	_, err := c.FetchDaily(context.Background(), "600519", "2024-01-01", "2024-01-05")
	require.ErrorContains(t, err, "unexpected status 502")

	_, err = c.FetchDaily(context.Background(), "12345", "2024-01-01", "2024-01-05")
	require.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestParseAdjust(t *testing.T) {
	for in, want := range map[string]Adjust{"qfq": AdjustForward, "HFQ": AdjustBackward, "": AdjustNone, "none": AdjustNone} {
		got, err := ParseAdjust(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseAdjust("split")
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestParseKlineRejectsGarbage(t *testing.T) {
	_, err := parseKline("600519", "2024-01-02,abc,1,1,1,1,1")
	require.Error(t, err)
	_, err = parseKline("600519", "2024-01-02,1,2")
	require.Error(t, err)
}
