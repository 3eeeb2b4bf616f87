package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/config"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
)

var errLoggerRequired = errors.New("directory logger is required")

// Client reads restaurant and team roster records from the directory
// service. The cart engine never writes through this boundary.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

// NewClient builds a directory client. Returns nil (and no error) when no
// base URL is configured so callers can fall back to the static directory.
func NewClient(cfg config.DirectoryConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		logger:     logg,
	}, nil
}

type restaurantRecord struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	ProviderType         string    `json:"provider_type"`
	ProviderRestaurantID *string   `json:"provider_restaurant_id"`
	PriceMultiplier      *string   `json:"price_multiplier"`
}

type rosterRecord struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}

// GetRestaurant resolves restaurant metadata owned by the menu service.
func (c *Client) GetRestaurant(ctx context.Context, id uuid.UUID) (*carts.RestaurantInfo, error) {
	var record restaurantRecord
	if err := c.get(ctx, fmt.Sprintf("/v1/restaurants/%s", id), &record); err != nil {
		return nil, err
	}

	providerType, err := enums.ParseProviderType(record.ProviderType)
	if err != nil {
		providerType = enums.ProviderTypeNone
	}
	multiplier := decimal.NewFromInt(1)
	if record.PriceMultiplier != nil {
		if parsed, err := decimal.NewFromString(*record.PriceMultiplier); err == nil && parsed.IsPositive() {
			multiplier = parsed
		}
	}
	return &carts.RestaurantInfo{
		ID:                   record.ID,
		Name:                 record.Name,
		ProviderType:         providerType,
		ProviderRestaurantID: record.ProviderRestaurantID,
		PriceMultiplier:      multiplier,
	}, nil
}

// ListRoster resolves the member roster owned by the team service.
func (c *Client) ListRoster(ctx context.Context, teamID uuid.UUID) ([]carts.RosterMember, error) {
	var records []rosterRecord
	if err := c.get(ctx, fmt.Sprintf("/v1/teams/%s/members", teamID), &records); err != nil {
		return nil, err
	}

	members := make([]carts.RosterMember, 0, len(records))
	for _, record := range records {
		if record.ID == uuid.Nil {
			continue
		}
		members = append(members, carts.RosterMember{
			ID:          record.ID,
			DisplayName: record.DisplayName,
			Email:       record.Email,
		})
	}
	return members, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "directory request build failed")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "directory request failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "directory call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "directory response read failed")
	}
	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "directory record not found")
	}
	if resp.StatusCode >= 400 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("directory call failed with status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "directory response decode failed")
	}
	return nil
}
