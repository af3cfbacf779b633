package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps credentials in a Redis hash under a namespace. Every
// mutation is announced on a pub/sub channel so that other processes sharing
// the namespace can recompute their session.
type RedisStore struct {
	Broadcaster

	client    *redis.Client
	namespace string
	origin    string
	logger    *zap.Logger
}

// RedisConfig configures NewRedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

type redisNotice struct {
	Origin string    `json:"origin"`
	Kind   EventKind `json:"kind"`
	Role   Role      `json:"role"`
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Namespace, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, namespace string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = "jaffa"
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		origin:    uuid.NewString(),
		logger:    logger,
	}
}

func (s *RedisStore) credentialsKey() string { return s.namespace + ":session:credentials" }
func (s *RedisStore) hintKey() string        { return s.namespace + ":session:role_hint" }
func (s *RedisStore) channel() string        { return s.namespace + ":session:events" }

func (s *RedisStore) Get(ctx context.Context, role Role) (*Credential, error) {
	raw, err := s.client.HGet(ctx, s.credentialsKey(), string(role)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &cred, nil
}

func (s *RedisStore) Put(ctx context.Context, cred *Credential) error {
	if cred == nil || !cred.Role.Valid() {
		return fmt.Errorf("put credential: invalid role")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.client.HSet(ctx, s.credentialsKey(), string(cred.Role), data).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	s.announce(ctx, Event{Kind: EventPut, Role: cred.Role, Reason: ReasonFrom(ctx)})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, role Role) error {
	n, err := s.client.HDel(ctx, s.credentialsKey(), string(role)).Result()
	if err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	if n > 0 {
		s.announce(ctx, Event{Kind: EventDelete, Role: role})
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.credentialsKey(), s.hintKey()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	s.announce(ctx, Event{Kind: EventClear, Role: RoleNone})
	return nil
}

func (s *RedisStore) RoleHint(ctx context.Context) (Role, error) {
	raw, err := s.client.Get(ctx, s.hintKey()).Result()
	if errors.Is(err, redis.Nil) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("redis get: %w", err)
	}
	return Role(raw), nil
}

func (s *RedisStore) SetRoleHint(ctx context.Context, role Role) error {
	if err := s.client.Set(ctx, s.hintKey(), string(role), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Watch subscribes to the namespace channel and republishes changes made by
// other processes as EventExternal. stop blocks until the subscriber exits.
func (s *RedisStore) Watch(ctx context.Context) (stop func(), err error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	msgs := sub.Channel()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var notice redisNotice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					s.logger.Warn("malformed session notice", zap.Error(err))
					continue
				}
				if notice.Origin == s.origin {
					continue
				}
				s.Publish(Event{Kind: EventExternal, Role: notice.Role})
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		<-done
	}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// announce notifies local subscribers and, best effort, other processes.
func (s *RedisStore) announce(ctx context.Context, ev Event) {
	s.Publish(ev)

	payload, err := json.Marshal(redisNotice{Origin: s.origin, Kind: ev.Kind, Role: ev.Role})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.Warn("failed to publish session notice", zap.Error(err))
	}
}
