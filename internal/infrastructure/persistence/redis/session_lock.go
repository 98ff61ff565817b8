package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/pkg/logger"
)

const lockPollInterval = 50 * time.Millisecond

// releaseLock 仅持有者可以释放
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// SessionLocker 基于 SET NX PX 的会话租约锁，多实例部署时串行化同一会话
type SessionLocker struct {
	client *Client
	prefix string
}

var _ chat.SessionLocker = (*SessionLocker)(nil)

func NewSessionLocker(client *Client, prefix string) *SessionLocker {
	if prefix == "" {
		prefix = "chat:lock"
	}
	return &SessionLocker{client: client, prefix: prefix}
}

func (l *SessionLocker) Acquire(ctx context.Context, sessionID string, ttl, wait time.Duration) (func(), error) {
	ctx, span := tracer.Start(ctx, "redis.SessionLocker.Acquire")
	defer span.End()

	key := l.prefix + ":" + sessionID
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, chat.ErrSessionBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	return func() {
		// 请求上下文可能已取消，释放使用独立超时
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseLock.Run(rctx, l.client.rdb, []string{key}, token).Err(); err != nil {
			logger.Warn(rctx, "release session lock failed", "session_id", sessionID, "error", err.Error())
		}
	}, nil
}
