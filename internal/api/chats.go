package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/matheus3301/chatline/internal/domain"
)

// ListChats returns the page of chats after cursor (GET /chats).
func (c *Client) ListChats(ctx context.Context, cursor string) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.do(ctx, request{
		op:     "list chats",
		method: http.MethodGet,
		path:   "/chats",
		query:  cursorQuery(cursor),
	}, &chats)
	return chats, err
}

// GetChat returns one chat (GET /chats/{id}).
func (c *Client) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	var chat domain.Chat
	if err := c.do(ctx, request{
		op:     "get chat",
		method: http.MethodGet,
		path:   "/chats/" + url.PathEscape(id),
	}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetMemberChat returns the direct chat with a profile, creating it on the
// backend if needed (GET /chats/members/{profileId}).
func (c *Client) GetMemberChat(ctx context.Context, profileID string) (*domain.Chat, error) {
	var chat domain.Chat
	if err := c.do(ctx, request{
		op:     "get member chat",
		method: http.MethodGet,
		path:   "/chats/members/" + url.PathEscape(profileID),
	}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListMessages returns the page of messages of a chat that follows cursor in
// the given sort order (GET /chats/{id}/messages). With SortDesc the page
// holds older messages, newest first; with SortAsc newer ones, oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID, cursor, sort string) ([]domain.Message, error) {
	q := cursorQuery(cursor)
	if sort != "" {
		q.Set("sort", sort)
	}
	var msgs []domain.Message
	err := c.do(ctx, request{
		op:     "list messages",
		method: http.MethodGet,
		path:   "/chats/" + url.PathEscape(chatID) + "/messages",
		query:  q,
	}, &msgs)
	return msgs, err
}

// Upload is an image attached to a message.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PostMessage sends a message (POST /chats/{id}/messages). Without an image
// the body is JSON; with one it is multipart/form-data.
func (c *Client) PostMessage(ctx context.Context, chatID, body string, image *Upload) (*domain.Message, error) {
	req := request{
		op:     "post message",
		method: http.MethodPost,
		path:   "/chats/" + url.PathEscape(chatID) + "/messages",
	}

	if image == nil {
		r, err := jsonBody(map[string]string{"body": body})
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		req.body = r
		req.contentType = "application/json"
	} else {
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		if err := w.WriteField("body", body); err != nil {
			return nil, fmt.Errorf("write body field: %w", err)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, image.Filename))
		h.Set("Content-Type", image.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(image.Data); err != nil {
			return nil, fmt.Errorf("write image part: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("close multipart: %w", err)
		}
		req.body = buf
		req.contentType = w.FormDataContentType()
	}

	var msg domain.Message
	if err := c.do(ctx, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
