package api

import (
	"context"
	"net/http"

	"github.com/matheus3301/chatline/internal/domain"
)

// ListProfiles returns the page of profiles after cursor whose name matches
// name (GET /profiles). An empty name lists everyone.
func (c *Client) ListProfiles(ctx context.Context, cursor, name string) ([]domain.Profile, error) {
	q := cursorQuery(cursor)
	if name != "" {
		q.Set("name", name)
	}
	var profiles []domain.Profile
	err := c.do(ctx, request{
		op:     "list profiles",
		method: http.MethodGet,
		path:   "/profiles",
		query:  q,
	}, &profiles)
	return profiles, err
}
