package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	// 容量2，初始填满，连续消耗两个后应被限流
	tb := NewTokenBucket(60, 2)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	// 极低速率，令牌耗尽后等待应被上下文取消
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketRefill(t *testing.T) {
	// 每秒60个令牌，耗尽后稍等即可恢复
	tb := NewTokenBucket(3600, 1)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, tb.Allow())
}
