package cart

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store keeps each visitor's cart as a Redis list. The cart only holds
// ticket ids; ticket state always comes from the database.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func cartKey(visitorID string) string {
	return "cart:" + visitorID
}

func (s *Store) Get(ctx context.Context, visitorID string) (Cart, error) {
	ids, err := s.Client.LRange(ctx, cartKey(visitorID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return Cart{}, err
	}
	return New(visitorID, ids), nil
}

// Append adds newly reserved ticket ids to the end of the visitor's cart
// and refreshes the cart TTL.
func (s *Store) Append(ctx context.Context, visitorID string, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	key := cartKey(visitorID)
	args := make([]interface{}, len(ticketIDs))
	for i, id := range ticketIDs {
		args[i] = id
	}
	if err := s.Client.RPush(ctx, key, args...).Err(); err != nil {
		return err
	}
	return s.Client.Expire(ctx, key, s.TTL).Err()
}

// Remove drops the given ticket ids from the visitor's cart. Used by the
// expiry sweeper after deleting stale reservations.
func (s *Store) Remove(ctx context.Context, visitorID string, ticketIDs []string) error {
	key := cartKey(visitorID)
	for _, id := range ticketIDs {
		if err := s.Client.LRem(ctx, key, 0, id).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, visitorID string) error {
	return s.Client.Del(ctx, cartKey(visitorID)).Err()
}
