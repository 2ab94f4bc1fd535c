package positions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	apiURL        = "http://localhost:8000"
	positionsPath = "/api/v1/evaluations/positions"
	userAgent     = "spigell/talento-chat"

	cacheKeyList = "positions"
	cacheKeyItem = "position:"

	defaultRetryWait = time.Second
	maxRetryWait     = 10 * time.Second
)

// ErrNotFound is returned when the service has no position with the given id.
var ErrNotFound = errors.New("position not found")

type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	token      string
	logger     *zap.Logger
	cache      *cache.Cache
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// Retries is how many times a failed or 5xx request is repeated.
	Retries   int
	RetryWait time.Duration
}

// New creates a client for the evaluation service. Responses are cached for
// ttl; a non-positive ttl disables caching.
func New(ctx context.Context, logger *zap.Logger, token string, ttl time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		ctx:    ctx,
		token:  strings.TrimSpace(token),
		logger: logger,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
		RetryWait: defaultRetryWait,
	}

	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}

	return c
}

// List returns every position the service publishes, active or not.
func (c *Client) List() (*Positions, error) {
	if cached, ok := c.cached(cacheKeyList); ok {
		return cached.(*Positions), nil
	}

	endpoint, err := url.JoinPath(c.APIURL, positionsPath)
	if err != nil {
		return nil, fmt.Errorf("building positions url: %w", err)
	}

	var raw []any
	if err := c.getJSON(endpoint, &raw); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	var items []*Position
	if err := decode(raw, &items); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	c.logger.Debug("got positions", zap.Int("count", len(items)))

	positions := &Positions{Items: items}
	c.store(cacheKeyList, positions)

	return positions, nil
}

// Get returns a single position by id.
func (c *Client) Get(id string) (*Position, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("position id is required")
	}

	if cached, ok := c.cached(cacheKeyItem + id); ok {
		return cached.(*Position), nil
	}

	endpoint, err := url.JoinPath(c.APIURL, positionsPath, id)
	if err != nil {
		return nil, fmt.Errorf("building position url: %w", err)
	}

	var raw map[string]any
	if err := c.getJSON(endpoint, &raw); err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}

	var position Position
	if err := decode(raw, &position); err != nil {
		return nil, fmt.Errorf("decode position %s: %w", id, err)
	}

	c.store(cacheKeyItem+id, &position)

	return &position, nil
}

func (c *Client) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Client) store(key string, value any) {
	if c.cache == nil {
		return
	}
	c.cache.Set(key, value, cache.DefaultExpiration)
}

// decode maps loosely typed JSON onto positions. The service serialises
// salaries as decimal strings but older deployments send numbers.
func decode(input, output any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "json",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
