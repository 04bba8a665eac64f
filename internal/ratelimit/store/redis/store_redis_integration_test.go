//go:build integration

package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	redisstore "caseguard/internal/ratelimit/store/redis"
	"caseguard/pkg/testutil/containers"
)

type RedisCounterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstore.RedisCounterStore
}

func TestRedisCounterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCounterSuite))
}

func (s *RedisCounterSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = redisstore.New(s.redis.Client)
}

func (s *RedisCounterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCounterSuite) TestIncr_CountsWithinWindow() {
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, resetAt, err := s.store.Incr(ctx, "user-17", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, count)
		s.WithinDuration(time.Now().Add(time.Minute), resetAt, 5*time.Second)
	}
}

func (s *RedisCounterSuite) TestIncr_IndependentKeys() {
	ctx := context.Background()

	count, _, err := s.store.Incr(ctx, "user-17", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)

	count, _, err = s.store.Incr(ctx, "user-99", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RedisCounterSuite) TestIncr_WindowExpires() {
	ctx := context.Background()

	count, _, err := s.store.Incr(ctx, "user-17", 200*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(1, count)

	time.Sleep(300 * time.Millisecond)

	count, _, err = s.store.Incr(ctx, "user-17", 200*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(1, count, "expired window starts over")
}

func (s *RedisCounterSuite) TestIncr_AtomicAcrossGoroutines() {
	const goroutines = 50
	ctx := context.Background()

	counts := make(chan int, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, _, err := s.store.Incr(ctx, "user-17", time.Minute)
			if s.NoError(err) {
				counts <- count
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool, goroutines)
	for c := range counts {
		s.False(seen[c], "count observed twice")
		seen[c] = true
	}
	s.Len(seen, goroutines)
}
