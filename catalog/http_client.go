package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPGateway talks to the catalog service over its internal HTTP API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway against baseURL with the given timeout.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetPrice implements Gateway.
func (g *HTTPGateway) GetPrice(ctx context.Context, itemID, locationID uuid.UUID, variantID string) (PriceQuote, error) {
	url := fmt.Sprintf("%s/items/internal/%s/price?location_id=%s", g.baseURL, itemID, locationID)
	if variantID != "" {
		url += "&variant_id=" + variantID
	}

	var quote PriceQuote
	if err := g.getJSON(ctx, url, &quote); err != nil {
		return PriceQuote{}, err
	}
	return quote, nil
}

// GetModifierPriceImpact implements Gateway.
func (g *HTTPGateway) GetModifierPriceImpact(ctx context.Context, modifierIDs []uuid.UUID) (float64, error) {
	if len(modifierIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(modifierIDs))
	for _, id := range modifierIDs {
		ids = append(ids, id.String())
	}
	url := fmt.Sprintf("%s/modifiers/internal/price-impact?ids=%s", g.baseURL, strings.Join(ids, ","))

	var out struct {
		Amount float64 `json:"amount"`
	}
	if err := g.getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
