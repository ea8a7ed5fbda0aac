// Package redisauth reads the signed-in identity from a Redis key and follows
// auth events published on a Redis channel.
package redisauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/nota-agent/internal/domain"
	"github.com/PabloGalante/nota-agent/internal/observability"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Key holds the JSON-encoded identity of the signed-in user.
	Key string
	// Channel carries JSON-encoded authMessage values.
	Channel string
}

type Provider struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// authMessage is the wire format published on the auth channel.
type authMessage struct {
	Event domain.AuthEvent `json:"event"`
	User  *domain.Identity `json:"user,omitempty"`
	At    time.Time        `json:"at"`
}

// NewProvider connects to Redis and verifies the connection.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewProviderWithClient(client, opts.Key, opts.Channel), nil
}

func NewProviderWithClient(client redis.UniversalClient, key, channel string) *Provider {
	return &Provider{client: client, key: key, channel: channel}
}

func (p *Provider) CurrentSession(ctx context.Context) (domain.Session, error) {
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AbsentSession, nil
	}
	if err != nil {
		return domain.AbsentSession, fmt.Errorf("reading session key: %w", err)
	}

	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.AbsentSession, fmt.Errorf("decoding session: %w", err)
	}
	if id.UserID == "" {
		return domain.AbsentSession, nil
	}
	return domain.PresentSession(id), nil
}

// OnAuthStateChange subscribes to the auth channel. fn runs on a single
// goroutine in publish order until the returned func is called.
func (p *Provider) OnAuthStateChange(fn func(domain.AuthEvent, domain.Session)) (func(), error) {
	ctx := context.Background()
	pubsub := p.client.Subscribe(ctx, p.channel)

	// Wait for the subscription to be confirmed so no event is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", p.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log := observability.Logger().With("channel", p.channel)

		for msg := range pubsub.Channel() {
			var m authMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Warn("invalid auth message", "error", err)
				continue
			}

			s := domain.AbsentSession
			if m.User != nil && m.User.UserID != "" {
				s = domain.PresentSession(*m.User)
			}
			fn(m.Event, s)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

// SignIn stores id as the current session and announces it.
func (p *Provider) SignIn(ctx context.Context, id domain.Identity) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := p.client.Set(ctx, p.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("writing session key: %w", err)
	}
	return p.publish(ctx, authMessage{Event: domain.AuthSignedIn, User: &id})
}

// SignOut clears the current session and announces it.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("deleting session key: %w", err)
	}
	return p.publish(ctx, authMessage{Event: domain.AuthSignedOut})
}

func (p *Provider) publish(ctx context.Context, m authMessage) error {
	m.At = time.Now().UTC()
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal auth message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}
