package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements ports.ClaimLocker with SET NX PX.
type Locker struct {
	client valkey.Client
	prefix string
}

func (l *Locker) lockKey(key string) string {
	return l.prefix + strings.ReplaceAll(key, "|", ":")
}

// Acquire takes the lock for key. ok is false when another holder has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	k := l.lockKey(key)
	token := uuid.NewString()

	err := l.client.Do(ctx, l.client.B().Set().Key(k).Value(token).Nx().Px(ttl).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", k, err)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Exec(ctx, l.client, []string{k}, []string{token}).Error(); err != nil {
			return fmt.Errorf("unlock %s: %w", k, err)
		}
		return nil
	}
	return release, true, nil
}
