package goldsky

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOrderFills(t *testing.T) {
	var gotAuth string
	var gotVars map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req graphqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotVars = req.Variables
		_, _ = io.WriteString(w, `{"data":{"orderFilledEvents":[
			{"id":"e1","transactionHash":"0x1","timestamp":"1700000000","maker":"0xa","makerAssetId":"0","makerAmountFilled":"5500000","taker":"0xb","takerAssetId":"123","takerAmountFilled":"10000000"},
			{"id":"e2","transactionHash":"0x2","timestamp":"bad","maker":"0xa","makerAssetId":"0","makerAmountFilled":"1","taker":"0xb","takerAssetId":"123","takerAmountFilled":"1"}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, " key ")
	fills, err := c.FetchOrderFills(t.Context(), time.Unix(1699999999, 0), 100)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	assert.Equal(t, "Bearer key", gotAuth)
	assert.Equal(t, "1699999999", gotVars["since"])
	assert.Equal(t, "5.5", fills[0].MakerAmountFilled.String())
	assert.Equal(t, "10", fills[0].TakerAmountFilled.String())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), fills[0].Timestamp)
}

func TestFetchOrderFillsGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"errors":[{"message":"indexing"}]}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").FetchOrderFills(t.Context(), time.Now(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing")
}

func TestFetchOrderFillsPagesPastCap(t *testing.T) {
	events := []string{
		`{"id":"e1","transactionHash":"0x1","timestamp":"100","makerAmountFilled":"1","takerAmountFilled":"1"}`,
		`{"id":"e2","transactionHash":"0x2","timestamp":"101","makerAmountFilled":"1","takerAmountFilled":"1"}`,
		`{"id":"e3","transactionHash":"0x3","timestamp":"101","makerAmountFilled":"1","takerAmountFilled":"1"}`,
		`{"id":"e4","transactionHash":"0x4","timestamp":"102","makerAmountFilled":"1","takerAmountFilled":"1"}`,
	}
	stamps := []int64{100, 101, 101, 102}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req graphqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		since, _ := strconv.ParseInt(req.Variables["since"].(string), 10, 64)
		first := int(req.Variables["first"].(float64))
		skip := int(req.Variables["skip"].(float64))
		var page []string
		for i, e := range events {
			if stamps[i] < since {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			if len(page) < first {
				page = append(page, e)
			}
		}
		_, _ = io.WriteString(w, `{"data":{"orderFilledEvents":[`+strings.Join(page, ",")+`]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.pageSize = 2
	fills, err := c.FetchOrderFills(t.Context(), time.Unix(100, 0), 10)
	require.NoError(t, err)

	var hashes []string
	for _, f := range fills {
		hashes = append(hashes, f.TransactionHash)
	}
	assert.Equal(t, []string{"0x1", "0x2", "0x3", "0x4"}, hashes)
	assert.Equal(t, 3, calls)
}

func TestQueryRejectsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").FetchLatestBlock(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchLatestBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"_meta":{"block":{"number":52000123}}}}`)
	}))
	defer srv.Close()

	n, err := NewClient(srv.URL, "").FetchLatestBlock(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(52000123), n)
}
