package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/quiz-pool/internal/logger"
)

const (
	redisKeyPrefix = "quiz_pool:lock:"
	defaultLockTTL = 10 * time.Minute
	releaseTimeout = 5 * time.Second
)

// 只有持有者才能释放
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// 只有持有者才能续期
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker 基于 SET NX PX 的租约锁，多实例部署时使用
//
// 持有期间后台按 ttl/3 的间隔续期。续期发现锁已被删除或转给其他持有者，
// 或者连续失败超过一个租期时，Lease.Err 返回 ErrLockLost。
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	interval time.Duration // 等待锁时的轮询间隔
	renewal  time.Duration
	log      *logger.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker 创建 Redis 锁，ttl 不大于 0 时使用 10 分钟
func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if log == nil {
		log = logger.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		interval: 100 * time.Millisecond,
		renewal:  ttl / 3,
		log:      log,
	}
}

// Lock 轮询直到获得锁或 ctx 结束
func (l *RedisLocker) Lock(ctx context.Context, key string) (Lease, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	le := &redisLease{
		locker:   l,
		key:      key,
		redisKey: redisKey,
		token:    token,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go le.keepAlive()
	return le, nil
}

type redisLease struct {
	locker   *RedisLocker
	key      string
	redisKey string
	token    string

	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func (le *redisLease) Err() error {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.err
}

func (le *redisLease) lose(err error) {
	le.mu.Lock()
	le.err = err
	le.mu.Unlock()
	le.locker.log.Error("pool lock lost", "key", le.key, "error", err)
}

// keepAlive 周期续期直到 Unlock 或所有权丢失
func (le *redisLease) keepAlive() {
	defer close(le.done)
	l := le.locker

	ticker := time.NewTicker(l.renewal)
	defer ticker.Stop()
	renewed := time.Now()

	for {
		select {
		case <-le.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.renewal)
		n, err := renewScript.Run(ctx, l.client, []string{le.redisKey}, le.token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			if time.Since(renewed) >= l.ttl {
				le.lose(fmt.Errorf("%w: renew %s: %w", ErrLockLost, le.key, err))
				return
			}
			l.log.Warn("failed to renew pool lock", "key", le.key, "error", err)
		case n == 0:
			le.lose(fmt.Errorf("%w: %s is no longer held", ErrLockLost, le.key))
			return
		default:
			renewed = time.Now()
		}
	}
}

func (le *redisLease) Unlock() {
	le.once.Do(func() {
		close(le.stop)
		<-le.done

		// 调用方的 ctx 可能已结束，释放使用独立的超时
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		err := unlockScript.Run(ctx, le.locker.client, []string{le.redisKey}, le.token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			le.locker.log.Warn("failed to release pool lock", "key", le.key, "error", err)
		}
	})
}
