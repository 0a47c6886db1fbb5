package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/facility-maintenance/internal/model"
)

type commentRequest struct {
	ServiceRequestID int64  `json:"service_request_id"`
	UserID           int64  `json:"user_id"`
	Comment          string `json:"comment"`
}

// ListComments returns the comment thread of a service request in server
// order.
func (c *Client) ListComments(
	ctx context.Context,
	entityID int64,
) ([]model.Comment, error) {
	raw, err := c.t.Get(ctx, fmt.Sprintf("/comments/%d", entityID))
	if err != nil {
		return nil, fmt.Errorf("fetching comments for %d: %w", entityID, err)
	}
	return decodeList[model.Comment](raw, "comments")
}

// PostComment appends a comment to a service request thread.
func (c *Client) PostComment(
	ctx context.Context,
	entityID int64,
	authorID int64,
	body string,
) (*model.Comment, error) {
	raw, err := c.t.Post(ctx, "/comments", commentRequest{
		ServiceRequestID: entityID,
		UserID:           authorID,
		Comment:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("posting comment on %d: %w", entityID, err)
	}

	comment := model.Comment{EntityID: entityID, AuthorID: authorID, Body: body}
	if entity := entityFrom(raw); entity != nil {
		if err := json.Unmarshal(entity, &comment); err != nil {
			return nil, fmt.Errorf("decoding comment: %w", err)
		}
	}
	return &comment, nil
}

// ListInventory returns the equipment catalogue.
func (c *Client) ListInventory(ctx context.Context) ([]model.InventoryItem, error) {
	raw, err := c.t.Get(ctx, "/inventory")
	if err != nil {
		return nil, fmt.Errorf("fetching inventory: %w", err)
	}
	return decodeList[model.InventoryItem](raw, "inventory")
}

// ListServices returns the catalogue of requestable services.
func (c *Client) ListServices(ctx context.Context) ([]model.Service, error) {
	raw, err := c.t.Get(ctx, "/service")
	if err != nil {
		return nil, fmt.Errorf("fetching available services: %w", err)
	}
	return decodeList[model.Service](raw, "services")
}

// ListNotifications returns the current user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	raw, err := c.t.Get(ctx, "/notifications")
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return decodeList[model.Notification](raw, "notifications")
}

// MarkNotificationRead flags a notification as read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	if _, err := c.t.Patch(ctx, fmt.Sprintf("/notifications/%d/read", id), nil); err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return nil
}

// ListUsersByRole returns every user with role, used to pick assignees.
func (c *Client) ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	raw, err := c.t.Get(ctx, "/getUserByType/"+string(role))
	if err != nil {
		return nil, fmt.Errorf("fetching %s users: %w", role, err)
	}
	return decodeList[model.User](raw, "users")
}
