package utils

import "testing"

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 {
		t.Fatalf("unexpected pool size: %d", c.PoolSize)
	}
	if c.DialTimeout <= 0 || c.PingTimeout <= 0 {
		t.Fatalf("timeouts must default > 0: %+v", c)
	}
}
