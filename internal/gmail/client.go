package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/finflow/finflow/internal/common"
	"github.com/finflow/finflow/internal/model"
	"github.com/finflow/finflow/internal/service"
)

// DefaultQuery matches the bank-alert emails extraction was built for.
const DefaultQuery = `subject:(transaction OR debited OR credited OR payment) category:primary`

const defaultMaxResults = 50

// Client fetches alert emails from Gmail. It implements
// service.MessageSource.
type Client struct {
	service    *gmailv1.Service
	logger     *slog.Logger
	maxResults int64
}

// NewClient builds a Gmail client from an authenticated token.
func NewClient(ctx context.Context, config OAuth2Config, token *oauth2.Token, logger *slog.Logger) (*Client, error) {
	if token == nil {
		return nil, errors.New("gmail client requires a token")
	}
	if logger == nil {
		logger = slog.Default()
	}

	source := config.oauthConfig().TokenSource(ctx, token)
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMailConnection, err)
	}

	return &Client{
		service:    svc,
		maxResults: defaultMaxResults,
		logger:     logger,
	}, nil
}

// FetchMessages lists messages matching the Gmail search query and fetches
// the Subject and Date headers plus snippet for each. Individual message
// fetch failures are skipped; list failures are fatal.
func (c *Client) FetchMessages(ctx context.Context, query string, maxResults int) ([]model.EmailMessage, error) {
	if query == "" {
		query = DefaultQuery
	}
	limit := int64(maxResults)
	if limit <= 0 {
		limit = c.maxResults
	}

	c.logger.Info("fetching messages", "query", query, "max_results", limit)

	// The list call is retried on throttling; everything else fails fast.
	var list *gmailv1.ListMessagesResponse
	err := common.WithRetry(ctx, func() error {
		var listErr error
		list, listErr = c.service.Users.Messages.List("me").
			Q(query).
			MaxResults(limit).
			Context(ctx).
			Do()
		if listErr != nil {
			wrapped := wrapAPIError(listErr)
			return &common.RetryableError{
				Err:       wrapped,
				Retryable: errors.Is(wrapped, common.ErrMailRateLimit),
			}
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second})
	if err != nil {
		return nil, err
	}

	if len(list.Messages) == 0 {
		c.logger.Info("no messages found", "query", query)
		return nil, common.ErrNoMessages
	}

	messages := make([]model.EmailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := c.service.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			c.logger.Warn("message fetch failed", "message_id", ref.Id, "error", err)
			continue
		}
		messages = append(messages, parseMessage(msg))
	}

	c.logger.Info("messages fetched", "count", len(messages))
	return messages, nil
}

// parseMessage maps a Gmail API message onto the model type. The Date
// header is kept raw; extraction decides what to trust.
func parseMessage(msg *gmailv1.Message) model.EmailMessage {
	out := model.EmailMessage{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			out.Subject = h.Value
		case "Date":
			out.Date = h.Value
		}
	}
	return out
}

// wrapAPIError maps Gmail API failures onto the shared error taxonomy so
// retry logic can tell throttling from real failures.
func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code == 403 {
			return fmt.Errorf("%w: %v", common.ErrMailRateLimit, err)
		}
	}
	return fmt.Errorf("%w: %v", common.ErrMailConnection, err)
}
