package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/vytor/kotoflash/internal/logger"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps each document as JSON under "kotoflash:<path>" and
// publishes every write on "kotoflash:<path>:changes".
type RedisStore struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, log: logger.Default().WithPrefix("remote.redis")}
}

func documentKey(path string) string { return "kotoflash:" + path }
func changesChannel(path string) string { return documentKey(path) + ":changes" }

func (s *RedisStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	raw, err := s.client.Get(ctx, documentKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get %s: %v", path, err)
		return nil, fmt.Errorf("get document %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return &doc, nil
}

func (s *RedisStore) SetDocument(ctx context.Context, path string, doc Document) error {
	doc.Path = path
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, documentKey(path), payload, 0)
		pipe.Publish(ctx, changesChannel(path), payload)
		return nil
	})
	if err != nil {
		s.log.Error("failed to set %s: %v", path, err)
		return fmt.Errorf("set document %s: %w", path, err)
	}
	s.log.Debug("document written: path=%s bytes=%d", path, len(doc.Data))
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path string, onChange func(Document)) (Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, changesChannel(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		s.log.Error("failed to subscribe to %s: %v", path, err)
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var doc Document
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				s.log.Warn("failed to decode change message: %v", err)
				continue
			}
			onChange(doc)
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

func (s *RedisStore) Close() error {
	return s.client.Close()
}
