package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ruslano69/eavsql/pkg/store"
)

// DefaultChannel - канал Redis по умолчанию
const DefaultChannel = "eav:events"

// Redis публикует события в канал pub/sub
// Подписчиков на момент публикации может не быть: событие теряется
type Redis struct {
	rdb     redis.UniversalClient
	channel string
	owned   bool
}

// NewRedis подключается к Redis по адресу из конфигурации
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("address is required for Redis")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	r := NewRedisWithClient(rdb, cfg.Channel)
	r.owned = true
	return r, nil
}

// NewRedisWithClient использует готовый клиент (например, общий с кэшем)
func NewRedisWithClient(rdb redis.UniversalClient, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{rdb: rdb, channel: channel}
}

// Publish отправляет событие в канал
func (r *Redis) Publish(ctx context.Context, ev store.Event) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe возвращает поток событий канала до отмены ctx
// Сообщения, которые не удалось разобрать, пропускаются
func (r *Redis) Subscribe(ctx context.Context) (<-chan store.Event, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan store.Event)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				ev, err := Decode([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close закрывает клиент, если он создан NewRedis
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.rdb.Close()
}

func (r *Redis) Type() string { return TypeRedis }
