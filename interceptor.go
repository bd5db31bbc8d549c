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

	"github.com/ecodeclub/eroute/internal/errs"
	"github.com/sirupsen/logrus"
)

// Operation 被指定数据源执行的业务逻辑
type Operation func(ctx context.Context) error

// Interceptor 在业务逻辑前后切换数据源。
// 它是唯一代替调用者修改 Selection 的组件，每次调用恰好一次 Push 和一次 Pop
type Interceptor struct {
	defaultName string
	logger      logrus.FieldLogger
}

type InterceptorOption func(i *Interceptor)

func NewInterceptor(opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		defaultName: DefaultName,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func InterceptorWithLogger(logger logrus.FieldLogger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

func InterceptorWithDefault(name string) InterceptorOption {
	return func(i *Interceptor) {
		i.defaultName = name
	}
}

// Around 在数据源 name 上执行 op，name 为空时使用默认数据源。
// 如果当前执行上下文已经有事务，不会切换数据源，只打印告警，op 依旧在事务绑定的数据源上执行。
// op 的返回值和 panic 原样透传
func (i *Interceptor) Around(ctx context.Context, name string, op Operation) error {
	if name == "" {
		name = i.defaultName
	}
	ctx, sel := ensureSelection(ctx)
	if tx := sel.Tx(); tx != nil {
		if nameKey(tx.Name()) != nameKey(name) {
			i.logger.WithFields(logrus.Fields{
				"bound":     tx.Name(),
				"requested": name,
			}).Warn(errs.NewErrSwitchRefused(tx.Name(), name))
		}
		return op(ctx)
	}
	sel.Push(name)
	i.logger.WithField("datasource", name).Debug("eroute: 切换数据源")
	defer func() {
		sel.Pop()
		if prev, ok := sel.Peek(); ok {
			i.logger.WithField("datasource", prev).Debug("eroute: 恢复数据源")
		} else {
			i.logger.WithField("datasource", i.defaultName).Debug("eroute: 恢复默认数据源")
		}
	}()
	return op(ctx)
}

// Wrap 返回一个固定在数据源 name 上执行的 Operation
func (i *Interceptor) Wrap(name string, op Operation) Operation {
	return func(ctx context.Context) error {
		return i.Around(ctx, name, op)
	}
}

// WithDataSource 带返回值版本的 Around
func WithDataSource[T any](ctx context.Context, i *Interceptor, name string,
	op func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := i.Around(ctx, name, func(ctx context.Context) error {
		var err error
		res, err = op(ctx)
		return err
	})
	return res, err
}

var defaultInterceptor = NewInterceptor()

// Run 使用默认的 Interceptor 在数据源 name 上执行 op
func Run(ctx context.Context, name string, op Operation) error {
	return defaultInterceptor.Around(ctx, name, op)
}
