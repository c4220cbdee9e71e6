package fx

import (
	"geofeed-assist/internal/api"
	"geofeed-assist/internal/config"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/logger"
	"geofeed-assist/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideLeaderboardService(client *api.GeocachingClient, log zerolog.Logger) *service.LeaderboardService {
	return service.NewLeaderboardService(client, log)
}

func ProvideCorrelator(doc dom.Document, cfg *config.Config, log zerolog.Logger) *service.Correlator {
	return service.NewCorrelator(doc, cfg, log)
}

func ProvideEnricher(client *api.GeocachingClient, doc dom.Document, decorate service.DecorateFunc, log zerolog.Logger) *service.Enricher {
	return service.NewEnricher(client, doc, decorate, log)
}

// Module wires everything except the document source. The command supplies
// dom.Document, service.ContextReader and service.DecorateFunc depending on
// whether it runs against a live page or a snapshot.
var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// api client
	fx.Provide(api.NewGeocachingClient),
	// pipeline stages
	fx.Provide(ProvideLeaderboardService),
	fx.Provide(ProvideCorrelator),
	fx.Provide(ProvideEnricher),
	fx.Provide(service.NewPipeline),
)
