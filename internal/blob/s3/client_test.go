package s3blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	require.Equal(t, "https://minio.local:9000", normaliseEndpoint("minio.local:9000", true))
	require.Equal(t, "http://minio.local:9000", normaliseEndpoint("minio.local:9000", false))
	require.Equal(t, "http://already.set", normaliseEndpoint("http://already.set", true))
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{bucket: "artifacts", prefix: normalisePrefix("/ashare/")}
	require.Equal(t, "ashare/backtests/run-1/summary.json", c.Key("/backtests/run-1/summary.json"))
	require.Equal(t, "backtests/run-1/summary.json", c.Path("ashare/backtests/run-1/summary.json"))

	bare := &Client{bucket: "artifacts", prefix: normalisePrefix("")}
	require.Equal(t, "paper/state.json", bare.Key("paper/state.json"))
}
