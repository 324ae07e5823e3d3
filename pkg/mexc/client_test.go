package mexc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestGetLastPrice
func TestGetLastPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/contract/ticker", r.URL.Path)
		assert.Equal(t, "GIGGLE_USDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"success":true,"code":0,"data":{"symbol":"GIGGLE_USDT","lastPrice":123.45,"bid1":123.4,"ask1":123.5,"timestamp":1700000000000}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	price, err := c.GetLastPrice(context.Background(), Symbol("giggle/usdt"))
	require.NoError(t, err)
	assert.Equal(t, 123.45, price)
}

func TestGetLastPriceFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"not success": {http.StatusOK, `{"success":false,"code":1001,"message":"contract not exists"}`},
		"zero price":  {http.StatusOK, `{"success":true,"code":0,"data":{"symbol":"X_USDT","lastPrice":0}}`},
		"http 500":    {http.StatusInternalServerError, `oops`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second).GetLastPrice(context.Background(), "X_USDT")
			assert.Error(t, err)
		})
	}
}
