package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emojifeed/internal/middleware"
	"emojifeed/internal/models"
	"emojifeed/internal/observability"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

const upstreamName = "identity directory"

// directoryUser is the subset of the directory's user object this service reads.
type directoryUser struct {
	ID       string  `json:"id"`
	Username *string `json:"username"`
	ImageURL string  `json:"image_url"`
}

func (u directoryUser) profile() models.AuthorProfile {
	return models.AuthorProfile{
		UserID:          u.ID,
		Username:        lo.FromPtr(u.Username),
		ProfileImageURL: u.ImageURL,
	}
}

// HTTPDirectory queries a Clerk-compatible users endpoint: GET {base}/v1/users.
type HTTPDirectory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPDirectory returns a directory client for baseURL. A zero timeout means no client-side timeout.
func NewHTTPDirectory(baseURL, apiKey string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) ResolveByIDs(ctx context.Context, ids []string) (profiles map[string]models.AuthorProfile, err error) {
	ids = lo.Uniq(lo.Compact(ids))
	profiles = make(map[string]models.AuthorProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	ctx, span := observability.StartSpan(ctx, "identity.ResolveByIDs", attribute.Int("identity.ids", len(ids)))
	defer func() { observability.EndSpan(span, err) }()

	for _, chunk := range lo.Chunk(ids, MaxBatchSize) {
		q := url.Values{}
		for _, id := range chunk {
			q.Add("user_id", id)
		}
		q.Set("limit", strconv.Itoa(MaxBatchSize))

		users, err := d.listUsers(ctx, "resolve_by_ids", q)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			profiles[u.ID] = u.profile()
		}
	}

	if missing := len(ids) - len(profiles); missing > 0 {
		middleware.Logger.DebugContext(ctx, "identity directory returned fewer users than requested",
			slog.Int("requested", len(ids)),
			slog.Int("missing", missing),
		)
	}
	return profiles, nil
}

func (d *HTTPDirectory) ResolveByUsername(ctx context.Context, username string) (profile *models.AuthorProfile, err error) {
	ctx, span := observability.StartSpan(ctx, "identity.ResolveByUsername")
	defer func() { observability.EndSpan(span, err) }()

	q := url.Values{}
	q.Add("username", username)
	q.Set("limit", "1")

	users, err := d.listUsers(ctx, "resolve_by_username", q)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		// The directory matches usernames case-insensitively; so do we.
		if u.Username != nil && strings.EqualFold(*u.Username, username) {
			p := u.profile()
			return &p, nil
		}
	}
	return nil, errUserNotFound()
}

func (d *HTTPDirectory) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	_, err := d.listUsers(ctx, "ping", q)
	return err
}

func (d *HTTPDirectory) listUsers(ctx context.Context, operation string, q url.Values) (users []directoryUser, err error) {
	start := time.Now()
	defer func() { observability.ObserveIdentityLookup(operation, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v1/users?"+q.Encode(), nil)
	if err != nil {
		return nil, models.NewUpstreamError(upstreamName, err)
	}
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, models.NewUpstreamError(upstreamName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.NewUpstreamError(upstreamName,
			fmt.Errorf("GET /v1/users returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, models.NewUpstreamError(upstreamName, fmt.Errorf("decode users: %w", err))
	}
	return users, nil
}
