package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"geofeed-assist/internal/api"
	"geofeed-assist/internal/browser"
	"geofeed-assist/internal/constants"
	"geofeed-assist/internal/dom"
	"geofeed-assist/internal/domain"
	fxmodules "geofeed-assist/internal/fx"
	"geofeed-assist/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Finisher runs once the pipeline has augmented the feed. Snapshot mode
// writes the result and exits; live mode keeps the process attached so the
// found log toggles stay serviceable.
type Finisher func() error

func main() {
	snapshot := flag.String("snapshot", "", "augment a saved feed page instead of a live browser session")
	out := flag.String("out", "", "where to write the augmented snapshot (defaults to stdout)")
	username := flag.String("username", "", "context username for snapshot mode")
	refCode := flag.String("ref", "", "context reference code for snapshot mode")
	flag.Parse()

	opts := []fx.Option{
		fxmodules.Module,
		fx.Provide(provideDecorator),
	}
	if *snapshot != "" {
		opts = append(opts, snapshotOptions(*snapshot, *out, *username, *refCode))
	} else {
		opts = append(opts, liveOptions())
	}
	opts = append(opts, fx.Invoke(runPipeline))

	fx.New(opts...).Run()
}

func runPipeline(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	pipeline *service.Pipeline,
	finish Finisher,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				runCtx, cancel := context.WithTimeout(context.Background(), constants.PipelineTimeout)
				defer cancel()

				if err := pipeline.Run(runCtx); err != nil {
					logger.Error().Err(err).Msg("feed augmentation failed")
					_ = sd.Shutdown()
					return
				}
				if err := finish(); err != nil {
					logger.Error().Err(err).Msg("finishing failed")
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
	})
}

// provideDecorator is the stock visual composer. It tags each cache link
// with the metadata the page's own styling hooks onto, leaving rendering to
// the page itself.
func provideDecorator() service.DecorateFunc {
	return func(el dom.Element, detail *api.GeocacheDetail, status domain.FoundStatus) {
		el.SetAttr("data-cache-type", strconv.Itoa(detail.CacheType))
		el.SetAttr("data-status", status.String())
		el.SetAttr("title", fmt.Sprintf("%s by %s | D%.1f/T%.1f | %s | %d favorites",
			detail.Name, detail.Owner.Username, detail.Difficulty, detail.Terrain,
			detail.ContainerType.Name, detail.FavoritePoints))
	}
}

func liveOptions() fx.Option {
	return fx.Options(
		fx.Provide(browser.Open),
		fx.Provide(func(s *browser.Session) dom.Document { return s.Document() }),
		fx.Provide(func(s *browser.Session) service.ContextReader { return s }),
		fx.Provide(func(logger zerolog.Logger) Finisher {
			return func() error {
				logger.Info().Msg("feed augmented, keep the session open to use the found log toggles")
				return nil
			}
		}),
		fx.Invoke(func(lc fx.Lifecycle, s *browser.Session, logger zerolog.Logger) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					logger.Info().Msg("closing browser session")
					s.Close()
					return nil
				},
			})
		}),
	)
}

func snapshotOptions(path, out, username, refCode string) fx.Option {
	return fx.Options(
		fx.Provide(func() (*dom.HTMLDocument, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open snapshot: %w", err)
			}
			defer f.Close()
			return dom.NewHTMLDocument(f)
		}),
		fx.Provide(func(d *dom.HTMLDocument) dom.Document { return d }),
		fx.Provide(func() service.ContextReader {
			return staticContext{username: username, refCode: refCode}
		}),
		fx.Provide(func(d *dom.HTMLDocument, sd fx.Shutdowner, logger zerolog.Logger) Finisher {
			return func() error {
				defer func() { _ = sd.Shutdown() }()

				markup, err := d.HTML()
				if err != nil {
					return err
				}
				if out == "" {
					fmt.Println(markup)
					return nil
				}
				if err := os.WriteFile(out, []byte(markup), 0o644); err != nil {
					return err
				}
				logger.Info().Str("path", out).Msg("augmented snapshot written")
				return nil
			}
		}),
	)
}

// staticContext stands in for the page's server context when working from a
// snapshot, where no script environment exists to read it from.
type staticContext struct {
	username string
	refCode  string
}

func (s staticContext) ServerContext(context.Context) (*domain.ServerContext, error) {
	return &domain.ServerContext{
		UserInfo: domain.UserInfo{
			ReferenceCode: s.refCode,
			Username:      s.username,
		},
	}, nil
}
