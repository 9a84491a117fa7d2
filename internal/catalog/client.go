// Package catalog talks to the menu/catalog collaborator. The order system
// reads an item exactly once, at order-creation time, to snapshot it.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/vserve/ordersync/internal/orders/application"
)

type Client struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{log: log, baseURL: baseURL, client: &http.Client{}}
}

type itemResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Ingredients    string `json:"ingredients"`
	ImageRef       string `json:"image_ref"`
	Weight         string `json:"weight"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (c *Client) Item(ctx context.Context, propertyID, itemID string) (application.CatalogItem, error) {
	u := fmt.Sprintf("%s/properties/%s/items/%s", c.baseURL, url.PathEscape(propertyID), url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return application.CatalogItem{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return application.CatalogItem{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return application.CatalogItem{}, fmt.Errorf("catalog returned %d for item %s", resp.StatusCode, itemID)
	}

	var body itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return application.CatalogItem{}, err
	}
	return application.CatalogItem{
		ID:             body.ID,
		Name:           body.Name,
		Description:    body.Description,
		Ingredients:    body.Ingredients,
		ImageRef:       body.ImageRef,
		Weight:         body.Weight,
		UnitPriceCents: body.UnitPriceCents,
	}, nil
}
