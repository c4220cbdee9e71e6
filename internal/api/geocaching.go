package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"geofeed-assist/internal/config"
	"geofeed-assist/internal/constants"

	"github.com/valyala/fasthttp"
)

// Period selects the leaderboard window. Each period pages independently.
type Period int

const (
	PeriodCurrent Period = iota
	PeriodPrevious
)

func (p Period) String() string {
	if p == PeriodPrevious {
		return "previous"
	}
	return "current"
}

// pathSuffix is the URL fragment appended for the previous window.
func (p Period) pathSuffix() string {
	if p == PeriodPrevious {
		return "/lastweek"
	}
	return ""
}

type GeocachingClient struct {
	baseURL string
	client  *fasthttp.Client
}

func NewGeocachingClient(cfg *config.Config) *GeocachingClient {
	return &GeocachingClient{
		baseURL: cfg.SiteBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// LeaderboardPage fetches one skip/take page of the friends leaderboard.
func (c *GeocachingClient) LeaderboardPage(ctx context.Context, refCode string, period Period, skip, take int) (*AccountsPage, error) {
	u := fmt.Sprintf("%s/api/proxy/web/v1/leaderboard/1/account/%s%s?take=%d&skip=%d",
		c.baseURL, refCode, period.pathSuffix(), take, skip)
	return doRequest[AccountsPage](ctx, c, u)
}

// TypeaheadMatches resolves a cache code (or partial name) to search matches.
func (c *GeocachingClient) TypeaheadMatches(ctx context.Context, query string) ([]TypeaheadMatch, error) {
	u := fmt.Sprintf("%s/api/proxy/web/search/v2/typeahead?query=%s", c.baseURL, url.QueryEscape(query))
	matches, err := doRequest[[]TypeaheadMatch](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return *matches, nil
}

// GeocacheDetail fetches the full metadata record for one cache code.
func (c *GeocachingClient) GeocacheDetail(ctx context.Context, code string) (*GeocacheDetail, error) {
	u := fmt.Sprintf("%s/api/proxy/web/v1/geocache/%s", c.baseURL, url.PathEscape(code))
	return doRequest[GeocacheDetail](ctx, c, u)
}

var userTokenPattern = regexp.MustCompile(`userToken\s*=\s*'([^']+)'`)

// CacheLogbookToken fetches the cache's log page and extracts the session
// token the logbook endpoint requires.
func (c *GeocachingClient) CacheLogbookToken(ctx context.Context, code string) (string, error) {
	u := fmt.Sprintf("%s/geocache/%s", c.baseURL, url.PathEscape(code))
	body, err := c.doText(ctx, u)
	if err != nil {
		return "", err
	}
	return ExtractUserToken(body)
}

// ExtractUserToken pulls the logbook user token out of a cache page body.
func ExtractUserToken(body string) (string, error) {
	m := userTokenPattern.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("user token not found in cache page")
	}
	return m[1], nil
}

// LogbookPage fetches one page of a cache's logbook. Pages are 1-based.
func (c *GeocachingClient) LogbookPage(ctx context.Context, token string, idx, num int) (*LogbookPage, error) {
	u := fmt.Sprintf("%s/seek/geocache.logbook?tkn=%s&idx=%d&num=%d&decrypt=false",
		c.baseURL, url.QueryEscape(token), idx, num)
	return doRequest[LogbookPage](ctx, c, u)
}

func doRequest[T any](ctx context.Context, client *GeocachingClient, u string) (*T, error) {
	body, err := client.do(ctx, u)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *GeocachingClient) doText(ctx context.Context, u string) (string, error) {
	body, err := c.do(ctx, u)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *GeocachingClient) do(ctx context.Context, u string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json, text/html, */*")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// AccountsPage is one leaderboard page. A nil Activities slice on any
// account marks a shallow record and ends pagination.
type AccountsPage struct {
	Accounts []Account `json:"accounts"`
}

type Account struct {
	Username   string     `json:"username"`
	Activities []Activity `json:"activities"`
}

type Activity struct {
	ActivityType  string `json:"activityType"`
	LogDateTime   string `json:"logDateTime"`
	LogObjectCode string `json:"logObjectCode"`
}

const (
	ActivityFoundIt       = "FoundIt"
	ActivityFoundLabCache = "FoundLabCache"
)

type TypeaheadMatch struct {
	GeocacheName  string `json:"geocacheName"`
	ReferenceCode string `json:"referenceCode"`
}

type GeocacheDetail struct {
	Name           string        `json:"name"`
	CacheType      int           `json:"geocacheType"`
	Owner          CacheOwner    `json:"owner"`
	Difficulty     float64       `json:"difficulty"`
	Terrain        float64       `json:"terrain"`
	ContainerType  ContainerType `json:"containerType"`
	FavoritePoints int           `json:"favoritePoints"`
	UserFound      bool          `json:"userFound"`
	UserDidNotFind bool          `json:"userDidNotFind"`
	Solved         bool          `json:"hasCorrectedCoordinates"`
	RecentLogs     []LogExcerpt  `json:"recentActivities"`
}

type CacheOwner struct {
	Code     string `json:"code"`
	Username string `json:"username"`
}

type ContainerType struct {
	ID   int    `json:"id"`
	Name string `json:"containerTypeName"`
}

type LogExcerpt struct {
	Username  string `json:"username"`
	LogTypeID int    `json:"activityTypeId"`
	Text      string `json:"text"`
}

type LogbookPage struct {
	Status   string      `json:"status"`
	Data     []LogRecord `json:"data"`
	PageInfo PageInfo    `json:"pageInfo"`
}

type LogRecord struct {
	Username  string `json:"UserName"`
	LogTypeID int    `json:"LogTypeID"`
	Text      string `json:"LogText"`
}

type PageInfo struct {
	Idx        int `json:"idx"`
	Size       int `json:"size"`
	TotalPages int `json:"totalPages"`
	TotalRows  int `json:"totalRows"`
}
