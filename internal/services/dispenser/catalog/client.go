// Package catalog resolves purchased line items to slot labels through the
// Square catalog API. Slot assignments live in Square as a custom attribute
// on each item: the attribute value names a selection, and the attribute
// definition maps selections to human-readable slot labels, so recovering a
// label takes a chain of dependent fetches.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/timeouts"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL targets the production Square API. Point it at
// https://connect.squareupsandbox.com/v2 for sandbox accounts.
const DefaultBaseURL = "https://connect.squareup.com/v2"

// squareVersion pins the API shape the wire structs below decode.
const squareVersion = "2025-07-16"

const maxResponseBytes = 1 << 20

var tracer = otel.Tracer("vending-machine/catalog")

// HTTPDoer issues HTTP requests. *http.Client satisfies it; tests substitute
// their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds Square client settings.
type Config struct {
	// AccessToken authenticates every request. Required.
	AccessToken string
	// BaseURL overrides DefaultBaseURL when set.
	BaseURL string
	// Timeout caps each request. Defaults to timeouts.SquareRequest. A
	// timed-out fetch is a failed fetch; nothing retries it.
	Timeout time.Duration
	// HTTPClient overrides the transport when set.
	HTTPClient HTTPDoer
}

// Client is an authenticated Square API client covering the two resources
// dispensing needs: orders and catalog objects.
type Client struct {
	token      string
	baseURL    string
	timeout    time.Duration
	httpClient HTTPDoer
}

// NewClient returns a Square client. The access token must be non-empty.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.SquareRequest
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		token:      token,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
	}, nil
}

// FetchError reports a failed Square API call: a transport error, a timeout,
// or a non-200 response.
type FetchError struct {
	Path       string
	StatusCode int // zero when no response arrived
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e == nil:
		return "square fetch error"
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("square GET %s: status %d: %s", e.Path, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("square GET %s: status %d", e.Path, e.StatusCode)
	default:
		return fmt.Sprintf("square GET %s: %v", e.Path, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// GetOrder fetches an order's line items in purchase order.
func (c *Client) GetOrder(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order id is required")
	}

	var payload orderResponse
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID), &payload); err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(payload.Order.LineItems))
	for _, item := range payload.Order.LineItems {
		items = append(items, domain.LineItem{
			UID:             item.UID,
			CatalogObjectID: item.CatalogObjectID,
		})
	}
	return items, nil
}

// CatalogObject is the subset of a Square catalog object the resolver reads.
// Square serves items and attribute definitions from the same endpoint, so
// one shape covers both: an item carries custom attributes, a definition
// carries allowed selections.
type CatalogObject struct {
	CustomAttributes  []CustomAttribute
	AllowedSelections []Selection
}

// CustomAttribute is one custom attribute value on a catalog item.
type CustomAttribute struct {
	Key           string
	DefinitionID  string
	SelectionUIDs []string
}

// Selection is one allowed selection declared by an attribute definition.
type Selection struct {
	UID  string
	Name string
}

// GetCatalogObject fetches a catalog object by id. Custom attributes are
// returned in key order: Square delivers them as a JSON object, and the
// resolver's first-attribute rule needs a stable order to be deterministic.
func (c *Client) GetCatalogObject(ctx context.Context, objectID string) (CatalogObject, error) {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return CatalogObject{}, errors.New("catalog object id is required")
	}

	var payload catalogObjectResponse
	if err := c.get(ctx, "/catalog/object/"+url.PathEscape(objectID), &payload); err != nil {
		return CatalogObject{}, err
	}

	object := CatalogObject{}
	keys := make([]string, 0, len(payload.Object.CustomAttributeValues))
	for key := range payload.Object.CustomAttributeValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := payload.Object.CustomAttributeValues[key]
		object.CustomAttributes = append(object.CustomAttributes, CustomAttribute{
			Key:           key,
			DefinitionID:  value.CustomAttributeDefinitionID,
			SelectionUIDs: value.SelectionUIDValues,
		})
	}
	for _, selection := range payload.Object.CustomAttributeDefinitionData.SelectionConfig.AllowedSelections {
		object.AllowedSelections = append(object.AllowedSelections, Selection{
			UID:  selection.UID,
			Name: selection.Name,
		})
	}
	return object, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	ctx, span := tracer.Start(ctx, "square.get", trace.WithAttributes(
		attribute.String("square.path", path),
	))
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Path: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", squareVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, "request failed")
		span.RecordError(err)
		return &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return &FetchError{Path: path, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > maxResponseBytes {
		return &FetchError{Path: path, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return &FetchError{Path: path, StatusCode: resp.StatusCode, Body: bodySnippet(body)}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &FetchError{Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func bodySnippet(body []byte) string {
	const max = 200
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > max {
		snippet = snippet[:max]
	}
	return snippet
}

type orderResponse struct {
	Order struct {
		LineItems []struct {
			UID             string `json:"uid"`
			CatalogObjectID string `json:"catalog_object_id"`
		} `json:"line_items"`
	} `json:"order"`
}

type catalogObjectResponse struct {
	Object struct {
		CustomAttributeValues map[string]struct {
			CustomAttributeDefinitionID string   `json:"custom_attribute_definition_id"`
			SelectionUIDValues          []string `json:"selection_uid_values"`
		} `json:"custom_attribute_values"`
		CustomAttributeDefinitionData struct {
			SelectionConfig struct {
				AllowedSelections []struct {
					UID  string `json:"uid"`
					Name string `json:"name"`
				} `json:"allowed_selections"`
			} `json:"selection_config"`
		} `json:"custom_attribute_definition_data"`
	} `json:"object"`
}
