package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a broker backed by Redis Pub/Sub, so every relay instance sharing
// the same Redis sees the totals published by the others.
type Redis struct {
	client *redis.Client
	prefix string
	log    *zerolog.Logger
}

// NewRedis wraps an existing client. prefix namespaces the channels.
func NewRedis(client *redis.Client, prefix string, logger *zerolog.Logger) *Redis {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Redis{client: client, prefix: prefix, log: logger}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, opts *redis.Options, prefix string, logger *zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedis(client, prefix, logger), nil
}

func (r *Redis) channel(userID string) string {
	return fmt.Sprintf("%s:unread:%s", r.prefix, userID)
}

// Publish sends u on the user's channel.
func (r *Redis) Publish(ctx context.Context, u Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(u.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

// Subscribe subscribes to the user's channel. The subscription is confirmed
// before returning, so updates published afterwards are not missed.
func (r *Redis) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}

	sub := &redisSub{
		ps:   ps,
		ch:   make(chan Update, 1),
		done: make(chan struct{}),
		log:  r.log,
	}
	go sub.pump()
	return sub, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Update
	done chan struct{}
	once sync.Once
	log  *zerolog.Logger
}

func (s *redisSub) C() <-chan Update { return s.ch }

func (s *redisSub) pump() {
	defer close(s.ch)

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop malformed unread update")
				continue
			}
			offer(s.ch, u)
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
