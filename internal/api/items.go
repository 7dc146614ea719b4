package api

import (
	"context"
	"net/http"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

// ListItems returns one page of the caller's items (all items for
// superusers).
func (c *Client) ListItems(ctx context.Context, skip, limit int) (protocol.ItemsPublic, error) {
	var out protocol.ItemsPublic
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   protocol.ItemsPath(),
		query:  pageQuery(skip, limit),
		out:    &out,
	})
	return out, err
}

func (c *Client) CreateItem(ctx context.Context, in protocol.ItemCreate) (protocol.ItemPublic, error) {
	var it protocol.ItemPublic
	err := c.doJSON(ctx, http.MethodPost, protocol.ItemsPath(), in, &it)
	return it, err
}

func (c *Client) GetItem(ctx context.Context, id string) (protocol.ItemPublic, error) {
	var it protocol.ItemPublic
	err := c.doJSON(ctx, http.MethodGet, protocol.ItemPath(id), nil, &it)
	return it, err
}

func (c *Client) UpdateItem(ctx context.Context, id string, in protocol.ItemUpdate) (protocol.ItemPublic, error) {
	var it protocol.ItemPublic
	err := c.doJSON(ctx, http.MethodPut, protocol.ItemPath(id), in, &it)
	return it, err
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, protocol.ItemPath(id), nil, &protocol.Message{})
}
