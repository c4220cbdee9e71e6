package service

import (
	"context"

	"geofeed-assist/internal/api"
	"geofeed-assist/internal/constants"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LeaderboardAPI is the slice of the geocaching client the leaderboard
// service needs.
type LeaderboardAPI interface {
	LeaderboardPage(ctx context.Context, refCode string, period api.Period, skip, take int) (*api.AccountsPage, error)
}

type LeaderboardService struct {
	api    LeaderboardAPI
	logger zerolog.Logger
}

func NewLeaderboardService(client LeaderboardAPI, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{api: client, logger: logger}
}

// FetchAllAccounts pages through one leaderboard period until the API
// signals end of data: a failed or malformed page, an empty page, a short
// page, or a page containing a shallow account (no activities field). A
// fetch failure ends pagination with the accounts gathered so far; only
// context cancellation aborts.
func (s *LeaderboardService) FetchAllAccounts(ctx context.Context, refCode string, period api.Period) ([]api.Account, error) {
	var accounts []api.Account
	take := constants.LeaderboardPageSize

	for skip := 0; ; skip += take {
		page, err := s.api.LeaderboardPage(ctx, refCode, period, skip, take)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).
				Str("period", period.String()).
				Int("skip", skip).
				Msg("leaderboard page fetch failed, stopping pagination")
			return accounts, nil
		}
		if len(page.Accounts) == 0 {
			break
		}

		// A trailing short or shallow page still contributes its
		// accounts; the stop check runs after the append.
		accounts = append(accounts, page.Accounts...)

		if len(page.Accounts) < take || anyShallow(page.Accounts) {
			break
		}
	}

	s.logger.Debug().
		Str("period", period.String()).
		Int("account_count", len(accounts)).
		Msg("leaderboard pagination complete")
	return accounts, nil
}

// FetchBothPeriods retrieves the current and previous windows concurrently.
// The pipeline proceeds only when both complete.
func (s *LeaderboardService) FetchBothPeriods(ctx context.Context, refCode string) (current, previous []api.Account, err error) {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		current, err = s.FetchAllAccounts(gCtx, refCode, api.PeriodCurrent)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.FetchAllAccounts(gCtx, refCode, api.PeriodPrevious)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}

// anyShallow reports whether the API returned an account without its
// activities, the signal that deeper pages would be systematically
// incomplete.
func anyShallow(accounts []api.Account) bool {
	for _, account := range accounts {
		if account.Activities == nil {
			return true
		}
	}
	return false
}
