package authclient

import (
	"context"
	"net/http"
	"net/url"

	portalAuth "github.com/MrEthical07/portalAuth"
)

// JSON issues authenticated calls for the primary API (/api) or the ledger
// API (/fabric-api). Every call runs through Manager.Call, so a 401 clears
// the session exactly once for the token that was rejected.
type JSON struct {
	client  *Client
	manager *portalAuth.Manager
}

// NewJSON binds client to manager's session.
func NewJSON(client *Client, manager *portalAuth.Manager) *JSON {
	return &JSON{client: client, manager: manager}
}

func (j *JSON) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return j.manager.Call(ctx, func(ctx context.Context, token string) error {
		return j.client.Do(ctx, Request{Method: method, Path: path, Query: query, Token: token, Body: body}, out)
	})
}

// Get decodes GET path into out.
func (j *JSON) Get(ctx context.Context, path string, query url.Values, out any) error {
	return j.call(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body and decodes the answer into out.
func (j *JSON) Post(ctx context.Context, path string, body, out any) error {
	return j.call(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body and decodes the answer into out.
func (j *JSON) Put(ctx context.Context, path string, body, out any) error {
	return j.call(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues DELETE path.
func (j *JSON) Delete(ctx context.Context, path string) error {
	return j.call(ctx, http.MethodDelete, path, nil, nil, nil)
}
