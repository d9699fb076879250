package localstore

import (
	"context"
	"errors"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

type RedisKV struct {
	rdb       *goredis.Client
	namespace string
}

// DefaultRedisNamespace prefixes every key the service writes to redis.
const DefaultRedisNamespace = "learnview:"

// NewRedisKV stores every key under namespace; a missing ":" separator is added.
func NewRedisKV(rdb *goredis.Client, namespace string) *RedisKV {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisKV{rdb: rdb, namespace: namespace}
}

func (r *RedisKV) fullKey(key string) string { return r.namespace + key }

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.fullKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, r.fullKey(key), value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.fullKey(key)).Err()
}

func (r *RedisKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	out := make([]string, 0)
	iter := r.rdb.Scan(ctx, 0, globEscaper.Replace(r.fullKey(prefix))+"*", 200).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
