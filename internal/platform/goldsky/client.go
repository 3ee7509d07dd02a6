// Package goldsky reads CTF Exchange order fills from the Goldsky-hosted
// Polymarket orderbook subgraph.
package goldsky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// USDC and outcome tokens are both 6-decimal fixed point on chain.
const amountDecimals = 6

// maxPageSize is the subgraph's cap on "first".
const maxPageSize = 1000

const orderFillsQuery = `query OrderFills($since: BigInt!, $first: Int!, $skip: Int!) {
  orderFilledEvents(first: $first, skip: $skip, orderBy: timestamp, orderDirection: asc, where: {timestamp_gte: $since}) {
    id
    transactionHash
    timestamp
    maker
    makerAssetId
    makerAmountFilled
    taker
    takerAssetId
    takerAmountFilled
  }
}`

const latestBlockQuery = `{ _meta { block { number } } }`

// Client queries the subgraph over GraphQL.
type Client struct {
	url      string
	apiKey   string
	http     *http.Client
	pageSize int
}

// NewClient returns a client for the subgraph endpoint at url. apiKey is
// sent as a bearer token when set.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:      url,
		apiKey:   strings.TrimSpace(apiKey),
		http:     &http.Client{Timeout: 30 * time.Second},
		pageSize: maxPageSize,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type fillEvent struct {
	ID                string `json:"id"`
	TransactionHash   string `json:"transactionHash"`
	Timestamp         string `json:"timestamp"`
	Maker             string `json:"maker"`
	MakerAssetID      string `json:"makerAssetId"`
	MakerAmountFilled string `json:"makerAmountFilled"`
	Taker             string `json:"taker"`
	TakerAssetID      string `json:"takerAssetId"`
	TakerAmountFilled string `json:"takerAmountFilled"`
}

func (e fillEvent) toFill() (domain.Fill, int64, bool) {
	ts, err := strconv.ParseInt(e.Timestamp, 10, 64)
	if err != nil {
		return domain.Fill{}, 0, false
	}
	maker, err := decimal.NewFromString(e.MakerAmountFilled)
	if err != nil {
		return domain.Fill{}, 0, false
	}
	taker, err := decimal.NewFromString(e.TakerAmountFilled)
	if err != nil {
		return domain.Fill{}, 0, false
	}
	return domain.Fill{
		TransactionHash:   e.TransactionHash,
		Timestamp:         time.Unix(ts, 0).UTC(),
		Maker:             e.Maker,
		MakerAssetID:      e.MakerAssetID,
		MakerAmountFilled: maker.Shift(-amountDecimals),
		Taker:             e.Taker,
		TakerAssetID:      e.TakerAssetID,
		TakerAmountFilled: taker.Shift(-amountDecimals),
	}, ts, true
}

// FetchOrderFills returns up to limit fills at or after since, oldest first,
// paging past the subgraph's per-query cap. Amounts are scaled to whole
// units; events with unparseable numbers are skipped.
func (c *Client) FetchOrderFills(ctx context.Context, since time.Time, limit int) ([]domain.Fill, error) {
	cursor := since.Unix()
	// Each page restarts at the last second seen and skips the events
	// already taken in that second.
	seen := map[string]bool{}
	var fills []domain.Fill

	for len(fills) < limit {
		first := min(c.pageSize, limit-len(fills))
		var page struct {
			Events []fillEvent `json:"orderFilledEvents"`
		}
		vars := map[string]any{
			"since": strconv.FormatInt(cursor, 10),
			"first": first,
			"skip":  len(seen),
		}
		if err := c.query(ctx, orderFillsQuery, vars, &page); err != nil {
			return nil, fmt.Errorf("goldsky: fetch order fills: %w", err)
		}

		lastTS := cursor
		added := 0
		for _, e := range page.Events {
			if seen[e.ID] {
				continue
			}
			fill, ts, ok := e.toFill()
			if !ok {
				continue
			}
			if ts != lastTS {
				lastTS = ts
				clear(seen)
			}
			seen[e.ID] = true
			fills = append(fills, fill)
			added++
			if len(fills) == limit {
				break
			}
		}
		if len(page.Events) < first || added == 0 {
			break
		}
		cursor = lastTS
	}
	return fills, nil
}

// FetchLatestBlock returns the newest block the subgraph has indexed. The
// health endpoint uses it as a liveness probe.
func (c *Client) FetchLatestBlock(ctx context.Context) (int64, error) {
	var out struct {
		Meta struct {
			Block struct {
				Number int64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := c.query(ctx, latestBlockQuery, nil, &out); err != nil {
		return 0, fmt.Errorf("goldsky: fetch latest block: %w", err)
	}
	return out.Meta.Block.Number, nil
}

// query posts one GraphQL request and decodes its data into out.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: q, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		errs := make([]error, len(envelope.Errors))
		for i, e := range envelope.Errors {
			errs[i] = errors.New(e.Message)
		}
		return fmt.Errorf("graphql: %w", errors.Join(errs...))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.New("graphql: empty data")
	}
	return json.Unmarshal(envelope.Data, out)
}
