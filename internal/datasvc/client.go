// Package datasvc talks to the remote data service that stores instances and
// geofences.
package datasvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/metrics"
)

// Client fetches and saves feature collections.
type Client struct {
	http  *http.Client
	cache Cache
	base  string
}

// SaveResult is the reply of the save endpoint.
type SaveResult struct {
	Inserts int `json:"inserts"`
	Updates int `json:"updates"`
}

type fetchResponse struct {
	Data struct {
		Features []*geojson.Feature `json:"features"`
	} `json:"data"`
}

type saveResponse struct {
	Data SaveResult `json:"data"`
}

// New returns a client for the service at base. Endpoints passed to Fetch
// and Save are resolved against it unless they are absolute URLs. cache may
// be nil.
func New(base string, timeout time.Duration, cache Cache) *Client {
	return &Client{
		http:  &http.Client{Timeout: timeout},
		cache: cache,
		base:  strings.TrimRight(base, "/"),
	}
}

func (c *Client) resolve(endpoint string) (string, error) {
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		return endpoint, nil
	}
	if c.base == "" {
		return "", fmt.Errorf("relative endpoint %q without base url", endpoint)
	}
	return c.base + "/" + strings.TrimLeft(endpoint, "/"), nil
}

// Fetch downloads the features listed by endpoint.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]*geojson.Feature, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, target); ok {
			metrics.CacheHitsTotal.Inc()
			log.Debug().Str("url", target).Msg("Data service response served from cache")
			return decodeFeatures(body)
		}
		metrics.CacheMissesTotal.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "fetch")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	features, err := decodeFeatures(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, target, body)
	}

	log.Debug().
		Str("url", target).
		Int("features", len(features)).
		Msg("Features fetched from data service")

	return features, nil
}

// Save posts the collection to endpoint. Features without a type are sent
// with the default type of their geometry.
func (c *Client) Save(ctx context.Context, endpoint string, fc feature.Collection) (SaveResult, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return SaveResult{}, err
	}

	out := fc.Clone()
	for i := range out.Features {
		if out.Features[i].Type == "" {
			out.Features[i].Type = feature.TypeForGeometry(out.Features[i].Geometry)
		}
	}

	payload, err := json.Marshal(feature.ToGeoJSON(out))
	if err != nil {
		return SaveResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return SaveResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "save")
	if err != nil {
		return SaveResult{}, fmt.Errorf("save %s: %w", target, err)
	}

	var resp saveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SaveResult{}, fmt.Errorf("decode %s: %w", target, err)
	}

	log.Info().
		Str("url", target).
		Int("features", out.Len()).
		Int("inserts", resp.Data.Inserts).
		Int("updates", resp.Data.Updates).
		Msg("Collection saved to data service")

	return resp.Data, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.FetchTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func decodeFeatures(body []byte) ([]*geojson.Feature, error) {
	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Features, nil
}
