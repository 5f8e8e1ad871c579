package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist ログアウト済みトークンの失効管理。
// トークン自体の exp が切れるまで保持できれば十分なので Redis の TTL に乗せる。
type Denylist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

const denyKeyPrefix = "auth:deny:"

type redisDenylist struct {
	rdb *redis.Client
}

func NewRedisDenylist(rdb *redis.Client) Denylist {
	return &redisDenylist{rdb: rdb}
}

func (d *redisDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// 既に期限切れのトークンは登録不要
		return nil
	}
	return d.rdb.Set(ctx, denyKeyPrefix+token, "1", ttl).Err()
}

func (d *redisDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denyKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
