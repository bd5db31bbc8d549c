// Copyright 2021 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package eroute

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRouting(t *testing.T) (*RoutingDataSource, *Interceptor) {
	r, _, _ := newTestRegistry(t)
	logger, _ := test.NewNullLogger()
	return NewRoutingDataSource(r, RoutingWithLogger(logger)),
		NewInterceptor(InterceptorWithLogger(logger))
}

func TestInterceptor_Around(t *testing.T) {
	rds, i := newTestRouting(t)
	testCases := []struct {
		name    string
		ctx     func() context.Context
		dsName  string
		op      func(ctx context.Context) error
		wantKey string
		wantErr error
	}{
		{
			name:    "default without selection",
			ctx:     context.Background,
			dsName:  "",
			wantKey: Master,
		},
		{
			name:    "switch to pg",
			ctx:     func() context.Context { return NewContext(context.Background()) },
			dsName:  PG,
			wantKey: PG,
		},
		{
			name: "inner wins",
			ctx: func() context.Context {
				ctx := NewContext(context.Background())
				sel, _ := SelectionFrom(ctx)
				sel.Push(Master)
				return ctx
			},
			dsName:  PG,
			wantKey: PG,
		},
		{
			name:    "error passes through",
			ctx:     func() context.Context { return NewContext(context.Background()) },
			dsName:  PG,
			op:      func(ctx context.Context) error { return errors.New("op failed") },
			wantKey: PG,
			wantErr: errors.New("op failed"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := tc.ctx()
			before := 0
			if sel, ok := SelectionFrom(ctx); ok {
				before = sel.Len()
			}
			var gotKey string
			err := i.Around(ctx, tc.dsName, func(ctx context.Context) error {
				gotKey = rds.CurrentLookupKey(ctx)
				if tc.op != nil {
					return tc.op(ctx)
				}
				return nil
			})
			assert.Equal(t, tc.wantErr, err)
			assert.Equal(t, tc.wantKey, gotKey)
			if sel, ok := SelectionFrom(ctx); ok {
				assert.Equal(t, before, sel.Len())
			}
		})
	}
}

// 嵌套切换，退出内层之后恢复外层
func TestInterceptor_Nested(t *testing.T) {
	rds, i := newTestRouting(t)
	ctx := NewContext(context.Background())
	var keys []string
	record := func(ctx context.Context) {
		keys = append(keys, rds.CurrentLookupKey(ctx))
	}
	record(ctx)
	err := i.Around(ctx, Master, func(ctx context.Context) error {
		record(ctx)
		err := i.Around(ctx, PG, func(ctx context.Context) error {
			record(ctx)
			return nil
		})
		record(ctx)
		return err
	})
	require.NoError(t, err)
	record(ctx)
	assert.Equal(t, []string{Master, Master, PG, Master, Master}, keys)

	sel, _ := SelectionFrom(ctx)
	assert.Equal(t, 0, sel.Len())
	assert.Nil(t, sel.stack)
}

func TestInterceptor_BalanceOnPanic(t *testing.T) {
	_, i := newTestRouting(t)
	ctx := NewContext(context.Background())
	sel, _ := SelectionFrom(ctx)
	sel.Push(Master)

	assert.PanicsWithValue(t, "boom", func() {
		_ = i.Around(ctx, PG, func(ctx context.Context) error {
			return i.Around(ctx, Master, func(ctx context.Context) error {
				panic("boom")
			})
		})
	})
	top, ok := sel.Peek()
	require.True(t, ok)
	assert.Equal(t, Master, top)
	assert.Equal(t, 1, sel.Len())
}

// 上下文里没有 Selection 时，Around 创建一个只在 op 里可见的 Selection
func TestInterceptor_WithoutSelection(t *testing.T) {
	rds, i := newTestRouting(t)
	ctx := context.Background()
	err := i.Around(ctx, PG, func(ctx context.Context) error {
		_, ok := SelectionFrom(ctx)
		assert.True(t, ok)
		assert.Equal(t, PG, rds.CurrentLookupKey(ctx))
		return nil
	})
	require.NoError(t, err)
	_, ok := SelectionFrom(ctx)
	assert.False(t, ok)
	assert.Equal(t, Master, rds.CurrentLookupKey(ctx))
}

// 切换到未知数据源不会失败，失败发生在解析的时候
func TestInterceptor_UnknownName(t *testing.T) {
	rds, i := newTestRouting(t)
	ctx := NewContext(context.Background())
	err := i.Around(ctx, "oracle", func(ctx context.Context) error {
		_, _, err := rds.Current(ctx)
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownDataSource)
	sel, _ := SelectionFrom(ctx)
	assert.Equal(t, 0, sel.Len())
}

func TestInterceptor_Concurrent(t *testing.T) {
	rds, i := newTestRouting(t)
	names := []string{Master, PG}
	var eg errgroup.Group
	for w := 0; w < 32; w++ {
		name := names[w%2]
		eg.Go(func() error {
			ctx := NewContext(context.Background())
			for j := 0; j < 50; j++ {
				err := i.Around(ctx, name, func(ctx context.Context) error {
					if got := rds.CurrentLookupKey(ctx); got != name {
						return fmt.Errorf("want %s, got %s", name, got)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			if got := rds.CurrentLookupKey(ctx); got != Master {
				return fmt.Errorf("residual selection %s", got)
			}
			return nil
		})
	}
	assert.NoError(t, eg.Wait())
}

// 子任务从父任务的选择开始，之后各自独立
func TestInterceptor_ForkedWorkers(t *testing.T) {
	rds, i := newTestRouting(t)
	ctx := NewContext(context.Background())
	err := i.Around(ctx, PG, func(ctx context.Context) error {
		eg, egCtx := errgroup.WithContext(ctx)
		for w := 0; w < 8; w++ {
			w := w
			workerCtx := Fork(egCtx)
			eg.Go(func() error {
				if got := rds.CurrentLookupKey(workerCtx); got != PG {
					return fmt.Errorf("worker %d inherited %s", w, got)
				}
				return i.Around(workerCtx, Master, func(ctx context.Context) error {
					if got := rds.CurrentLookupKey(ctx); got != Master {
						return fmt.Errorf("worker %d got %s", w, got)
					}
					return nil
				})
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		assert.Equal(t, PG, rds.CurrentLookupKey(ctx))
		return nil
	})
	require.NoError(t, err)
}

func TestInterceptor_Wrap(t *testing.T) {
	rds, i := newTestRouting(t)
	var got string
	op := i.Wrap(PG, func(ctx context.Context) error {
		got = rds.CurrentLookupKey(ctx)
		return nil
	})
	require.NoError(t, op(NewContext(context.Background())))
	assert.Equal(t, PG, got)
}

func TestWithDataSource(t *testing.T) {
	rds, i := newTestRouting(t)
	ctx := NewContext(context.Background())
	name, err := WithDataSource(ctx, i, PG, func(ctx context.Context) (string, error) {
		return rds.CurrentLookupKey(ctx), nil
	})
	require.NoError(t, err)
	assert.Equal(t, PG, name)

	_, err = WithDataSource(ctx, i, PG, func(ctx context.Context) (int, error) {
		return 0, errors.New("op failed")
	})
	assert.EqualError(t, err, "op failed")
	sel, _ := SelectionFrom(ctx)
	assert.Equal(t, 0, sel.Len())
}

func TestRun(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	rds := NewRoutingDataSource(r)
	var got string
	err := Run(context.Background(), PG, func(ctx context.Context) error {
		got = rds.CurrentLookupKey(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, PG, got)
}

func TestInterceptor_DebugLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	i := NewInterceptor(InterceptorWithLogger(logger))
	err := i.Around(NewContext(context.Background()), PG, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, PG, entries[0].Data["datasource"])
	assert.Equal(t, Master, entries[1].Data["datasource"])
}
