package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// OpportunityLister provides read access to stored opportunities.
type OpportunityLister interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
}

// Archiver serializes catalog snapshots and opportunity history to JSONL and
// uploads them to object storage.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityLister
}

// NewArchiver creates a new Archiver. opps may be nil when only catalog
// snapshots are archived.
func NewArchiver(writer domain.BlobWriter, opps OpportunityLister) *Archiver {
	return &Archiver{writer: writer, opps: opps}
}

type conditionRecord struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Price   string `json:"price"`
	Outcome string `json:"outcome"`
	AssetID string `json:"asset_id,omitempty"`
}

type marketRecord struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	EndDate    string            `json:"end_date"`
	GroupKey   string            `json:"group_key,omitempty"`
	Category   string            `json:"category,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Entities   []string          `json:"entities,omitempty"`
	Conditions []conditionRecord `json:"conditions"`
}

type edgeRecord struct {
	MarketA    string  `json:"market_a"`
	MarketB    string  `json:"market_b"`
	Similarity float64 `json:"similarity"`
}

type opportunityRecord struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	MarketID         string `json:"market_id"`
	ConditionName    string `json:"condition_name,omitempty"`
	RelatedMarketID  string `json:"related_market_id,omitempty"`
	RelatedCondition string `json:"related_condition,omitempty"`
	Side             string `json:"side,omitempty"`
	Pattern          string `json:"pattern,omitempty"`
	Profit           string `json:"profit"`
	DetectedAt       string `json:"detected_at"`
}

func toMarketRecord(m domain.Market) marketRecord {
	rec := marketRecord{
		ID:       m.ID,
		Title:    m.Title,
		EndDate:  m.EndDate.Format(time.DateOnly),
		GroupKey: m.GroupKey,
		Category: string(m.Category),
		Tags:     m.Tags,
		Entities: m.Entities.Values(),
	}
	for _, c := range m.Conditions {
		rec.Conditions = append(rec.Conditions, conditionRecord{
			Name:    c.Name,
			Label:   c.Label,
			Price:   c.Price.String(),
			Outcome: c.Outcome.String(),
			AssetID: c.AssetID,
		})
	}
	return rec
}

// ArchiveCatalog uploads one ingestion run's markets and relatedness edges to
// archive/catalog/YYYY-MM-DD/{runID}/markets.jsonl and relations.jsonl. It
// returns the market path.
func (a *Archiver) ArchiveCatalog(ctx context.Context, runID string, at time.Time, markets []domain.Market, edges []domain.RelatednessEdge) (string, error) {
	mrecs := make([]marketRecord, len(markets))
	for i, m := range markets {
		mrecs[i] = toMarketRecord(m)
	}
	erecs := make([]edgeRecord, len(edges))
	for i, e := range edges {
		erecs[i] = edgeRecord{MarketA: e.MarketA, MarketB: e.MarketB, Similarity: e.Similarity}
	}

	dir := fmt.Sprintf("archive/catalog/%s/%s", at.UTC().Format(time.DateOnly), runID)
	marketsPath := dir + "/markets.jsonl"
	mbody, err := marshalJSONL(mrecs)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive catalog markets: %w", err)
	}
	ebody, err := marshalJSONL(erecs)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive catalog relations: %w", err)
	}
	if err := a.upload(ctx, marketsPath, "markets", mbody, len(mrecs)); err != nil {
		return "", fmt.Errorf("s3blob: archive catalog markets: %w", err)
	}
	if err := a.upload(ctx, dir+"/relations.jsonl", "relations", ebody, len(erecs)); err != nil {
		return "", fmt.Errorf("s3blob: archive catalog relations: %w", err)
	}
	return marketsPath, nil
}

// ArchiveOpportunities uploads every opportunity detected since the given
// time to archive/opportunities/YYYY-MM-DD.jsonl keyed by the since date, and
// returns the number archived.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, since time.Time) (int64, error) {
	if a.opps == nil {
		return 0, nil
	}
	opps, err := a.opps.ListRecent(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	recs := make([]opportunityRecord, len(opps))
	for i, o := range opps {
		recs[i] = opportunityRecord{
			ID:               o.ID,
			Kind:             string(o.Kind),
			MarketID:         o.MarketID,
			ConditionName:    o.ConditionName,
			RelatedMarketID:  o.RelatedMarketID,
			RelatedCondition: o.RelatedCondition,
			Side:             string(o.Side),
			Pattern:          string(o.Pattern),
			Profit:           o.Profit.String(),
			DetectedAt:       o.DetectedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	path := fmt.Sprintf("archive/opportunities/%s.jsonl", since.UTC().Format(time.DateOnly))
	body, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities: %w", err)
	}
	if err := a.upload(ctx, path, "opportunities", body, len(recs)); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities: %w", err)
	}
	return int64(len(opps)), nil
}

func (a *Archiver) upload(ctx context.Context, key, kind string, body []byte, records int) error {
	return a.writer.Write(ctx, domain.BlobObject{
		Key:         key,
		Body:        body,
		ContentType: jsonlContentType,
		Metadata: map[string]string{
			"kind":    kind,
			"records": strconv.Itoa(records),
		},
	})
}

// marshalJSONL serialises a slice as newline-delimited JSON, one compact
// record per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
