// Package idempotency は注文確定の二重送信ガード。
// 同じ (user, key) の処理が走っている間、後続をはじく。
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 解放トークン。同時に取った別のリクエストと重ならない値
var newToken = uuid.NewString

// 自分が置いた値のときだけ消す
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Key(userID int64, idemKey string) string {
	return fmt.Sprintf("checkout:%d:%s", userID, idemKey)
}

// 取れたら release を返す。取れなければ ok=false（処理中）
func (g *RedisGuard) Acquire(ctx context.Context, userID int64, idemKey string) (func(), bool, error) {
	key := g.Key(userID, idemKey)
	token := newToken()

	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		//リクエストのctxが切れていても解放する
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}

// Redisが無い環境用（常に取れる）
type NoopGuard struct{}

func (NoopGuard) Acquire(ctx context.Context, userID int64, idemKey string) (func(), bool, error) {
	return func() {}, true, nil
}
