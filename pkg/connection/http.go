package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/logger"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

var _ Connection = (*HTTPConnection)(nil)

// HTTPConnection talks to the content API over its REST interface.
type HTTPConnection struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
	pageSize   int
}

func NewHTTPConnection(conf *Config) (*HTTPConnection, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}

	con := &HTTPConnection{
		baseURL:    conf.BaseURL,
		token:      conf.Token,
		httpClient: conf.HTTPClient,
		logger:     conf.Logger,
		pageSize:   conf.PageSize,
	}
	if con.httpClient == nil {
		con.httpClient = http.DefaultClient
	}
	if con.logger == nil {
		con.logger = logger.Nop{}
	}
	if con.pageSize <= 0 {
		con.pageSize = constants.DefaultPageSize
	}
	return con, nil
}

func (h *HTTPConnection) ListLocales(ctx context.Context) (models.Locales, error) {
	var site models.Site
	if err := h.do(ctx, http.MethodGet, "/site", nil, &site); err != nil {
		return nil, err
	}
	return site.Locales, nil
}

func (h *HTTPConnection) ListItemTypes(ctx context.Context) ([]models.ItemType, error) {
	var itemTypes []models.ItemType
	err := h.do(ctx, http.MethodGet, "/item-types", nil, &itemTypes)
	return itemTypes, err
}

func (h *HTTPConnection) CreateItemType(ctx context.Context, itemType models.ItemType) (*models.ItemType, error) {
	var created models.ItemType
	if err := h.do(ctx, http.MethodPost, "/item-types", itemType, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPConnection) UpdateItemType(ctx context.Context, itemType models.ItemType) (*models.ItemType, error) {
	var updated models.ItemType
	if err := h.do(ctx, http.MethodPut, "/item-types/"+url.PathEscape(itemType.ID), itemType, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (h *HTTPConnection) DestroyItemType(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, "/item-types/"+url.PathEscape(id), nil, nil)
}

func (h *HTTPConnection) ListFields(ctx context.Context, itemTypeID string) ([]models.Field, error) {
	var fields []models.Field
	err := h.do(ctx, http.MethodGet, "/item-types/"+url.PathEscape(itemTypeID)+"/fields", nil, &fields)
	return fields, err
}

func (h *HTTPConnection) CreateField(ctx context.Context, itemTypeID string, field models.Field) (*models.Field, error) {
	var created models.Field
	if err := h.do(ctx, http.MethodPost, "/item-types/"+url.PathEscape(itemTypeID)+"/fields", field, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPConnection) UpdateField(ctx context.Context, field models.Field) (*models.Field, error) {
	var updated models.Field
	if err := h.do(ctx, http.MethodPut, "/fields/"+url.PathEscape(field.ID), field, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (h *HTTPConnection) DestroyField(ctx context.Context, id string) error {
	return h.do(ctx, http.MethodDelete, "/fields/"+url.PathEscape(id), nil, nil)
}

func (h *HTTPConnection) EachItem(ctx context.Context, q ItemQuery, fn func(models.Item) error) error {
	limit := q.PageSize
	if limit <= 0 {
		limit = h.pageSize
	}

	for offset := 0; ; offset += limit {
		query := url.Values{}
		query.Set("filter[type]", q.TypeID)
		query.Set("nested", strconv.FormatBool(q.Nested))
		query.Set("page[offset]", strconv.Itoa(offset))
		query.Set("page[limit]", strconv.Itoa(limit))

		body, err := h.request(ctx, http.MethodGet, "/items?"+query.Encode(), nil)
		if err != nil {
			return err
		}

		var items []models.Item
		if err := decodeData(body, &items); err != nil {
			return err
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}

		total, err := jsonparser.GetInt(body, "meta", "total_count")
		if err != nil {
			// without a total we stop at the first short page
			total = int64(offset + len(items))
			if len(items) == limit {
				total++
			}
		}
		if len(items) == 0 || int64(offset+len(items)) >= total {
			return nil
		}
	}
}

func (h *HTTPConnection) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	var created models.Item
	if err := h.do(ctx, http.MethodPost, "/items", item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPConnection) UpdateItem(ctx context.Context, id string, attributes map[string]any) (*models.Item, error) {
	var updated models.Item
	body := models.Item{ID: id, Attributes: attributes}
	if err := h.do(ctx, http.MethodPut, "/items/"+url.PathEscape(id), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// do sends body (if any) and decodes the "data" member of the response into
// res (if not nil).
func (h *HTTPConnection) do(ctx context.Context, method, path string, body, res any) error {
	respBody, err := h.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return decodeData(respBody, res)
}

func (h *HTTPConnection) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	h.logger.Debug("api request", "method", method, "path", path)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, respBytes)
	}
	return respBytes, nil
}

func decodeData(body []byte, res any) error {
	if len(body) == 0 {
		return nil
	}
	value, dataType, _, err := jsonparser.Get(body, "data")
	if err != nil {
		return fmt.Errorf("missing data in response: %w", err)
	}
	if dataType == jsonparser.Null {
		return nil
	}
	if err := json.Unmarshal(value, res); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
