package checkpoint

import (
	"context"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestRedisLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("LRANGE", "ck", "0", "-1")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("mdp.001"),
			mock.RedisString("mdp.002"),
		)))

	l := NewRedisLogForTest(c, "ck")
	done, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("done set size = %d, want 2", len(done))
	}
	if _, ok := done["mdp.001"]; !ok {
		t.Error("mdp.001 missing from done set")
	}
}

func TestRedisLoadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("LRANGE", "ck", "0", "-1")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	l := NewRedisLogForTest(c, "ck")
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRedisAppend(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("RPUSH", "ck", "mdp.001", "mdp.002")).
		Return(mock.Result(mock.RedisInt64(2)))

	l := NewRedisLogForTest(c, "ck")
	if err := l.Append(context.Background(), []string{"mdp.001", "mdp.002"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedisAppendEmpty(t *testing.T) {
	// Client is never called for an empty append.
	l := NewRedisLogForTest(nil, "ck")
	if err := l.Append(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRedisAppendRetriesThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	calls := 0
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "RPUSH" && cmd[1] == "ck"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			calls++
			if calls == 1 {
				return mock.ErrorResult(context.DeadlineExceeded)
			}
			return mock.Result(mock.RedisInt64(1))
		}).Times(2)

	l := NewRedisLogForTest(c, "ck")
	if err := l.Append(context.Background(), []string{"mdp.001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("RPUSH attempts = %d, want 2", calls)
	}
}

func TestRedisAppendRetryExhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "RPUSH"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded)).
		Times(3)

	l := NewRedisLogForTest(c, "ck")
	if err := l.Append(context.Background(), []string{"mdp.001"}); err == nil {
		t.Fatal("expected error after retries are exhausted")
	}
}
