// Package api exposes the maintenance backend's REST resources as typed
// calls over a transport.Client.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/transport"
)

// Client is the endpoint catalogue for the maintenance backend.
type Client struct {
	t *transport.Client
}

// New creates an endpoint catalogue over t.
func New(t *transport.Client) *Client {
	return &Client{t: t}
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type loginRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	ExpoPushToken *string `json:"expo_push_token"`
}

// Login authenticates with email and password. pushToken may be nil when
// no notification identity could be acquired.
func (c *Client) Login(
	ctx context.Context,
	email string,
	password string,
	pushToken *string,
) (*LoginResponse, error) {
	raw, err := c.t.Post(ctx, "/login", loginRequest{
		Email:         email,
		Password:      password,
		ExpoPushToken: pushToken,
	})
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	var resp LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	return &resp, nil
}

// Logout revokes the current credential on the server.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.t.Post(ctx, "/logout", nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// unwrapData returns the "data" member of an envelope such as
// {"message": "...", "data": {...}}, or raw itself when there is none.
func unwrapData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	data := gjson.GetBytes(raw, "data")
	if data.IsObject() || data.IsArray() {
		return json.RawMessage(data.Raw)
	}
	return raw
}

// splitArray splits a JSON array (optionally wrapped in "data") into its
// elements.
func splitArray(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = unwrapData(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	res := gjson.ParseBytes(raw)
	if !res.IsArray() {
		return nil, fmt.Errorf("expected JSON array, got %s", res.Type)
	}
	items := make([]json.RawMessage, 0, len(res.Array()))
	for _, item := range res.Array() {
		items = append(items, json.RawMessage(item.Raw))
	}
	return items, nil
}

// decodeList unmarshals a JSON array (optionally wrapped in "data").
func decodeList[T any](raw json.RawMessage, what string) ([]T, error) {
	raw = unwrapData(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", what, err)
	}
	return out, nil
}
