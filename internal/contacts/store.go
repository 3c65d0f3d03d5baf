package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultContextTTL = 90 * 24 * time.Hour

// Store persists Context blobs per (contact, location).
type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewStore(redisClient *redis.Client, tracer trace.Tracer) *Store {
	if redisClient == nil {
		panic("contacts: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("leadrouter.internal.contacts")
	}
	return &Store{
		redis:  redisClient,
		tracer: tracer,
		ttl:    defaultContextTTL,
	}
}

// WithTTL overrides the retention window applied on every save.
func (s *Store) WithTTL(ttl time.Duration) *Store {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// Load returns the stored context for the contact. The bool reports
// whether this is the contact's first event (no context existed yet).
func (s *Store) Load(ctx context.Context, contactID, locationID string) (*Context, bool, error) {
	ctx, span := s.tracer.Start(ctx, "contacts.load_context")
	defer span.End()

	data, err := s.redis.Get(ctx, contextKey(contactID, locationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewContext(), true, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("contacts: failed to load context: %w", err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("contacts: failed to decode context: %w", err)
	}
	if c.BotPreferences == nil {
		c.BotPreferences = make(map[string]any)
	}
	if c.GhostState == "" {
		c.GhostState = GhostActive
	}
	return &c, false, nil
}

// Save persists the context with a refreshed TTL.
func (s *Store) Save(ctx context.Context, contactID, locationID string, c *Context) error {
	ctx, span := s.tracer.Start(ctx, "contacts.save_context")
	defer span.End()

	if c == nil {
		return fmt.Errorf("contacts: nil context for %s", contactID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("contacts: failed to encode context: %w", err)
	}
	if err := s.redis.Set(ctx, contextKey(contactID, locationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("contacts: failed to persist context: %w", err)
	}
	return nil
}

func contextKey(contactID, locationID string) string {
	return fmt.Sprintf("contact_context:%s:%s", locationID, contactID)
}
