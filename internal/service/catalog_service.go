package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/entity"
	"github.com/alanyoungcy/polyarb/internal/metrics"
	"github.com/alanyoungcy/polyarb/internal/normalize"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
	"github.com/alanyoungcy/polyarb/internal/relation"
	"github.com/alanyoungcy/polyarb/internal/topic"
)

// EventSource lists open events from the catalog API.
type EventSource interface {
	ListOpenEvents(ctx context.Context, pageSize, maxEvents int) ([]polymarket.APIEvent, error)
}

// CatalogArchiver uploads a catalog snapshot.
type CatalogArchiver interface {
	ArchiveCatalog(ctx context.Context, runID string, at time.Time, markets []domain.Market, edges []domain.RelatednessEdge) (string, error)
}

// Catalog is the output of one ingestion cycle: normalized markets with
// their entities and the relatedness graph over them.
type Catalog struct {
	RunID   string
	BuiltAt time.Time
	Markets []domain.Market
	Graph   relation.Graph
	Dropped int
}

// RelatednessEdges converts the graph edges to their persisted form.
func (c Catalog) RelatednessEdges() []domain.RelatednessEdge {
	out := make([]domain.RelatednessEdge, len(c.Graph.Edges))
	for i, e := range c.Graph.Edges {
		out[i] = domain.RelatednessEdge{
			MarketA:    c.Markets[e.I].ID,
			MarketB:    c.Markets[e.J].ID,
			Similarity: e.Similarity,
			RunID:      c.RunID,
			CreatedAt:  c.BuiltAt,
		}
	}
	return out
}

// AssetMarkets maps every tradable asset id to its market id.
func (c Catalog) AssetMarkets() map[string]string {
	out := make(map[string]string)
	for _, m := range c.Markets {
		for _, cond := range m.Conditions {
			if cond.Tradable() {
				out[cond.AssetID] = m.ID
			}
		}
	}
	return out
}

// CatalogConfig configures a CatalogService. Store, relation and archive
// collaborators are optional.
type CatalogConfig struct {
	Source    EventSource
	Grapher   *relation.Grapher
	PageSize  int
	MaxEvents int
	Markets   domain.MarketStore
	Relations domain.RelationStore
	Archiver  CatalogArchiver
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// CatalogService runs an ingestion cycle: fetch, convert, classify topics,
// normalize, extract entities, build the relatedness graph, then persist.
type CatalogService struct {
	cfg    CatalogConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(cfg CatalogConfig) *CatalogService {
	return &CatalogService{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "catalog_service")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Build runs one ingestion cycle. Malformed markets are dropped and counted.
// A cycle that yields no markets fails with domain.ErrEmptyCatalog.
// Persistence failures are logged and do not fail the cycle.
func (s *CatalogService) Build(ctx context.Context) (Catalog, error) {
	events, err := s.cfg.Source.ListOpenEvents(ctx, s.cfg.PageSize, s.cfg.MaxEvents)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog_service: list events: %w", err)
	}

	cat := Catalog{RunID: uuid.NewString(), BuiltAt: s.now()}
	seen := make(map[string]struct{})
	for i := range events {
		ms, dropped := events[i].ToDomainMarkets()
		for _, err := range dropped {
			s.logger.DebugContext(ctx, "market dropped",
				slog.String("event_id", events[i].ID),
				slog.String("error", err.Error()),
			)
		}
		cat.Dropped += len(dropped)
		for _, m := range ms {
			if _, dup := seen[m.ID]; dup {
				cat.Dropped++
				continue
			}
			seen[m.ID] = struct{}{}
			cat.Markets = append(cat.Markets, m)
		}
	}
	if len(cat.Markets) == 0 {
		return Catalog{}, fmt.Errorf("catalog_service: %d events: %w", len(events), domain.ErrEmptyCatalog)
	}

	topic.Apply(cat.Markets)
	normalize.Markets(cat.Markets)
	entity.Markets(cat.Markets)

	start := time.Now()
	cat.Graph = s.cfg.Grapher.Build(cat.Markets)
	elapsed := time.Since(start)

	if m := s.cfg.Metrics; m != nil {
		m.MarketsIngested.Set(float64(len(cat.Markets)))
		m.MarketsDropped.Add(float64(cat.Dropped))
		m.RelatednessEdges.Set(float64(len(cat.Graph.Edges)))
		m.GraphBuildSeconds.Observe(elapsed.Seconds())
	}

	s.logger.InfoContext(ctx, "catalog built",
		slog.String("run_id", cat.RunID),
		slog.Int("events", len(events)),
		slog.Int("markets", len(cat.Markets)),
		slog.Int("dropped", cat.Dropped),
		slog.Int("edges", len(cat.Graph.Edges)),
		slog.Duration("graph_build", elapsed),
	)

	s.persist(ctx, cat)
	return cat, nil
}

func (s *CatalogService) persist(ctx context.Context, cat Catalog) {
	edges := cat.RelatednessEdges()

	if s.cfg.Markets != nil {
		if err := s.cfg.Markets.UpsertBatch(ctx, cat.Markets); err != nil {
			s.warn(ctx, "markets", err)
		}
	}
	if s.cfg.Relations != nil {
		if err := s.cfg.Relations.ReplaceRun(ctx, cat.RunID, edges); err != nil {
			s.warn(ctx, "relations", err)
		}
	}
	if s.cfg.Archiver != nil {
		path, err := s.cfg.Archiver.ArchiveCatalog(ctx, cat.RunID, cat.BuiltAt, cat.Markets, edges)
		if err != nil {
			s.warn(ctx, "archive", err)
		} else {
			s.logger.InfoContext(ctx, "catalog archived", slog.String("path", path))
		}
	}
}

func (s *CatalogService) warn(ctx context.Context, sink string, err error) {
	s.logger.WarnContext(ctx, "catalog persist failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SinkErrors.WithLabelValues("catalog_" + sink).Inc()
	}
}
