package service

import (
	"context"

	"geofeed-assist/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextReader extracts the host page's session object. One-shot: the
// pipeline captures the context once at startup and never re-reads it.
type ContextReader interface {
	ServerContext(ctx context.Context) (*domain.ServerContext, error)
}

// Pipeline wires the stages together: context gate, dual-period
// leaderboard fetch, index build, correlation, enrichment.
type Pipeline struct {
	reader      ContextReader
	leaderboard *LeaderboardService
	correlator  *Correlator
	enricher    *Enricher
	logger      zerolog.Logger
}

func NewPipeline(reader ContextReader, leaderboard *LeaderboardService, correlator *Correlator, enricher *Enricher, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		reader:      reader,
		leaderboard: leaderboard,
		correlator:  correlator,
		enricher:    enricher,
		logger:      logger,
	}
}

// Run executes one full augmentation pass. It is fire-and-forget: an
// ineligible or missing session deactivates the feature quietly, and
// per-item enrichment failures degrade inline instead of propagating.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := p.logger.With().Str("run_id", uuid.New().String()).Logger()

	sc, err := p.reader.ServerContext(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("server context unavailable, feature disabled")
		return nil
	}
	if !sc.Eligible() {
		logger.Debug().Msg("reference code not eligible, feature disabled")
		return nil
	}

	refCode := sc.UserInfo.ReferenceCode
	logger.Info().Str("reference_code", refCode).Msg("starting feed augmentation")

	current, previous, err := p.leaderboard.FetchBothPeriods(ctx, refCode)
	if err != nil {
		return err
	}

	builder := NewIndexBuilder()
	builder.AddAccounts(current)
	builder.AddAccounts(previous)
	index := builder.Build()

	if err := p.correlator.Run(ctx, index, sc); err != nil {
		return err
	}

	codes := index.CacheCodes()
	if len(codes) == 0 {
		logger.Info().Msg("no linkable cache codes in index, skipping enrichment")
		return nil
	}

	logger.Info().Int("code_count", len(codes)).Msg("enriching cache links")
	p.enricher.ResolveNames(ctx, codes)
	p.enricher.ResolveDetails(ctx, codes, sc.UserInfo.Username)

	logger.Info().Msg("feed augmentation complete")
	return nil
}
