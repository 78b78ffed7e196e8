package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/pipeline"
)

// Settings controls the mailbox query.
type Settings struct {
	User       string
	Sender     string
	MaxResults int64
}

// SettingsFromConfig resolves query settings from the gmail section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		User:       cfg.Gmail.User,
		Sender:     cfg.Gmail.QuerySender,
		MaxResults: cfg.Gmail.MaxResults,
	}
}

// Source lists alert messages.
type Source struct {
	svc      *gmailapi.Service
	settings Settings
	logger   *slog.Logger
}

// NewSource builds a source over the Gmail API. Callers pass
// option.WithHTTPClient with an authorized client.
func NewSource(ctx context.Context, settings Settings, logger *slog.Logger, opts ...option.ClientOption) (*Source, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: new service: %w", err)
	}
	if settings.User == "" {
		settings.User = "me"
	}
	return &Source{svc: svc, settings: settings, logger: logging.NewComponentLogger(logger, "gmail")}, nil
}

// Query returns the search expression for messages from sender after since.
func Query(sender string, since *time.Time) string {
	query := "from:" + sender
	if since != nil {
		query += " after:" + strconv.FormatInt(since.Unix(), 10)
	}
	return query
}

// FetchSince returns matching messages. Messages timestamped before since
// are dropped, since Gmail's after: operator is coarser than the watermark.
func (s *Source) FetchSince(ctx context.Context, since *time.Time) ([]pipeline.Message, error) {
	query := Query(s.settings.Sender, since)
	s.logger.Info("listing alert messages", logging.String("query", query))

	var ids []string
	call := s.svc.Users.Messages.List(s.settings.User).Q(query)
	if s.settings.MaxResults > 0 {
		call = call.MaxResults(s.settings.MaxResults)
	}
	err := call.Pages(ctx, func(page *gmailapi.ListMessagesResponse) error {
		for _, msg := range page.Messages {
			if msg != nil && msg.Id != "" {
				ids = append(ids, msg.Id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}
	if len(ids) == 0 {
		return []pipeline.Message{}, nil
	}

	out := make([]pipeline.Message, 0, len(ids))
	for _, id := range ids {
		full, err := s.svc.Users.Messages.Get(s.settings.User, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail: get message %s: %w", id, err)
		}
		msg, err := toMessage(full)
		if err != nil {
			return nil, fmt.Errorf("gmail: message %s: %w", id, err)
		}
		if since != nil && msg.Timestamp.Before(*since) {
			s.logger.Debug("message older than watermark skipped", logging.String("message_id", id))
			continue
		}
		out = append(out, msg)
	}
	s.logger.Info("alert messages fetched", logging.Int("listed", len(ids)), logging.Int("kept", len(out)))
	return out, nil
}

func toMessage(msg *gmailapi.Message) (pipeline.Message, error) {
	ts, err := messageTime(msg)
	if err != nil {
		return pipeline.Message{}, err
	}
	body, err := messageBody(msg.Payload)
	if err != nil {
		return pipeline.Message{}, err
	}
	return pipeline.Message{ID: msg.Id, Timestamp: ts, Body: body}, nil
}

func messageTime(msg *gmailapi.Message) (time.Time, error) {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC(), nil
	}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			if header != nil && strings.EqualFold(header.Name, "Date") {
				parsed, err := mail.ParseDate(header.Value)
				if err != nil {
					return time.Time{}, fmt.Errorf("parse Date header %q: %w", header.Value, err)
				}
				return parsed.UTC(), nil
			}
		}
	}
	return time.Time{}, errors.New("message has no timestamp")
}

// messageBody returns the first text/html part, falling back to the first
// text/plain part.
func messageBody(part *gmailapi.MessagePart) (string, error) {
	if part == nil {
		return "", errors.New("message has no payload")
	}
	if data := findPart(part, "text/html"); data != "" {
		return decodeBody(data)
	}
	if data := findPart(part, "text/plain"); data != "" {
		return decodeBody(data)
	}
	return "", nil
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" && !isAttachment(part) {
		return part.Body.Data
	}
	for _, child := range part.Parts {
		if data := findPart(child, mimeType); data != "" {
			return data
		}
	}
	return ""
}

func isAttachment(part *gmailapi.MessagePart) bool {
	if part.Filename != "" {
		return true
	}
	for _, header := range part.Headers {
		if header != nil && strings.EqualFold(header.Name, "Content-Disposition") &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(header.Value)), "attachment") {
			return true
		}
	}
	return false
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) (string, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}
