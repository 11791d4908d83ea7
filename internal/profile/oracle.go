package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carelink/portal-gateway/pkg/logger"
)

// getProfilePath is the upstream endpoint answering "does this identity have
// a completed profile"
const getProfilePath = "/api/v1/profile/get-profile"

var profileLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_profile_lookups_total",
		Help: "Total number of profile existence lookups by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(profileLookupsTotal)
}

// Client checks profile existence against the upstream backend.
//
// Ambiguity always resolves to "does not exist": sending a user to profile
// creation is idempotent and safe, while a dashboard assumes a profile. Do
// not weaken this directionality.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	logger     *logger.Logger
}

// NewClient creates a profile existence client. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache *Cache, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     log,
	}
}

// Exists reports whether the authenticated identity has a completed profile.
// One network round trip at most; every failure mode returns false.
func (c *Client) Exists(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}

	// Positive results may be served from cache; negatives never are, so a
	// freshly created profile is picked up on the next lookup.
	if c.cache != nil {
		if exists, ok := c.cache.Lookup(ctx, token); ok && exists {
			profileLookupsTotal.WithLabelValues("cache_hit").Inc()
			return true
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+getProfilePath, nil)
	if err != nil {
		c.logger.WithComponent("profile").WithError(err).Error("Failed to build profile request")
		profileLookupsTotal.WithLabelValues("error").Inc()
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithComponent("profile").WithError(err).Warn("Profile lookup failed")
		profileLookupsTotal.WithLabelValues("error").Inc()
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		profileLookupsTotal.WithLabelValues("missing").Inc()
		return false
	}

	var body upstreamProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.WithComponent("profile").WithError(err).Warn("Malformed profile response")
		profileLookupsTotal.WithLabelValues("error").Inc()
		return false
	}

	exists := body.profileExists()
	if exists {
		profileLookupsTotal.WithLabelValues("exists").Inc()
	} else {
		profileLookupsTotal.WithLabelValues("missing").Inc()
	}
	if exists && c.cache != nil {
		if err := c.cache.MarkExists(ctx, token); err != nil {
			c.logger.WithComponent("profile").WithError(err).Debug("Failed to cache profile existence")
		}
	}

	return exists
}

// upstreamProfileResponse is the subset of the get-profile response the
// gateway consumes
type upstreamProfileResponse struct {
	Status bool `json:"status"`
	Data   *struct {
		ProfileID interface{} `json:"profile_id"`
	} `json:"data"`
}

// profileExists holds iff status is set, data is non-null and profile_id is
// truthy
func (r *upstreamProfileResponse) profileExists() bool {
	if !r.Status || r.Data == nil {
		return false
	}
	return truthyID(r.Data.ProfileID)
}

// truthyID mirrors the loose typing of upstream profile identifiers: they
// arrive as strings or numbers, and empty or zero values mean "no profile"
func truthyID(v interface{}) bool {
	switch id := v.(type) {
	case string:
		return id != ""
	case float64:
		return id != 0
	case json.Number:
		f, err := id.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}
