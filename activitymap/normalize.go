// Package activitymap flattens session activity events into a record shape
// suitable for audit logs and activity feeds.
package activitymap

import (
	"context"
	"strings"
	"time"

	authsession "github.com/goliatone/go-auth-session"
)

const (
	// MetadataKeyEmail stores the email the action was attempted with.
	MetadataKeyEmail = "email"
	// MetadataKeyOutcome stores success or failure for sign in and sign up.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Record is the normalized activity shape.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts a session activity event into a Record. Failed sign
// ins carry no user id, so the actor falls back to the attempted email and
// then to the configured fallback.
func Normalize(event authsession.ActivityEvent, opts ...Option) Record {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	userID := strings.TrimSpace(event.UserID)
	email := strings.ToLower(strings.TrimSpace(event.Email))

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Record{
		ActorID:    firstNonEmpty(userID, email, options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   userID,
		Channel:    options.channel,
		Metadata:   recordMetadata(event.EventType, email, event.Metadata),
		OccurredAt: occurredAt,
	}
}

// Sink adapts fn into an authsession.ActivitySink that normalizes every
// event before handing it over.
func Sink(fn func(ctx context.Context, record Record) error, opts ...Option) authsession.ActivitySink {
	return authsession.ActivitySinkFunc(func(ctx context.Context, event authsession.ActivityEvent) error {
		if fn == nil {
			return nil
		}
		return fn(ctx, Normalize(event, opts...))
	})
}

// WithChannel sets the record channel.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the record object type.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when neither a user id nor an
// email is known.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func recordMetadata(eventType authsession.ActivityEventType, email string, in map[string]any) map[string]any {
	var out map[string]any
	set := func(key string, value any) {
		if out == nil {
			out = make(map[string]any, len(in)+2)
		}
		out[key] = value
	}

	for key, value := range in {
		set(key, value)
	}

	if email != "" {
		if _, exists := out[MetadataKeyEmail]; !exists {
			set(MetadataKeyEmail, email)
		}
	}

	switch eventType {
	case authsession.ActivityEventSignInSuccess, authsession.ActivityEventSignUpSuccess:
		set(MetadataKeyOutcome, "success")
	case authsession.ActivityEventSignInFailure, authsession.ActivityEventSignUpFailure:
		set(MetadataKeyOutcome, "failure")
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
