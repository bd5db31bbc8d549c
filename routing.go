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
	"database/sql"

	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/errs"
	"github.com/sirupsen/logrus"
)

var _ datasource.DataSource = &RoutingDataSource{}
var _ datasource.TxBeginner = &RoutingDataSource{}

// RoutingDataSource 虚拟数据源。
// 每次请求连接或者执行语句时，按 事务绑定 > Selection 栈顶 > 默认数据源 的顺序
// 决定使用哪个物理数据源。它只读 Selection，从不修改
type RoutingDataSource struct {
	registry    *Registry
	defaultName string
	ms          []Middleware
	handler     HandleFunc
	logger      logrus.FieldLogger
}

type RoutingOption func(r *RoutingDataSource)

func NewRoutingDataSource(registry *Registry, opts ...RoutingOption) *RoutingDataSource {
	r := &RoutingDataSource{
		registry:    registry,
		defaultName: DefaultName,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handler = buildChain(r.ms)
	return r
}

func RoutingWithDefault(name string) RoutingOption {
	return func(r *RoutingDataSource) {
		r.defaultName = name
	}
}

func RoutingWithMiddlewares(ms ...Middleware) RoutingOption {
	return func(r *RoutingDataSource) {
		r.ms = ms
	}
}

func RoutingWithLogger(logger logrus.FieldLogger) RoutingOption {
	return func(r *RoutingDataSource) {
		r.logger = logger
	}
}

// DefaultName 返回默认数据源的名字
func (r *RoutingDataSource) DefaultName() string {
	return r.defaultName
}

// CurrentLookupKey 返回当前执行上下文应该使用的数据源名字
func (r *RoutingDataSource) CurrentLookupKey(ctx context.Context) string {
	if sel, ok := SelectionFrom(ctx); ok {
		if tx := sel.Tx(); tx != nil {
			return tx.Name()
		}
		if name, ok := sel.Peek(); ok {
			return name
		}
	}
	return r.defaultName
}

// Current 解析出当前执行上下文对应的物理数据源
func (r *RoutingDataSource) Current(ctx context.Context) (Descriptor, datasource.DataSource, error) {
	entry, err := r.registry.lookup(r.CurrentLookupKey(ctx))
	if err != nil {
		return Descriptor{}, nil, err
	}
	return entry.desc, entry.ds, nil
}

// Conn 从当前数据源的连接池中拿一个连接
func (r *RoutingDataSource) Conn(ctx context.Context) (*sql.Conn, error) {
	desc, ds, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.WithField("datasource", desc.Name).Debug("eroute: 获取连接")
	return ds.Conn(ctx)
}

func (r *RoutingDataSource) Ping(ctx context.Context) error {
	_, ds, err := r.Current(ctx)
	if err != nil {
		return err
	}
	return ds.Ping(ctx)
}

func (r *RoutingDataSource) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	qc, err := r.route(ctx, TypeQuery, query)
	if err != nil {
		return nil, err
	}
	res := r.handler(ctx, qc)
	if res.Err != nil {
		return nil, res.Err
	}
	rows, ok := res.Result.(*sql.Rows)
	if !ok || rows == nil {
		return nil, errs.NewErrUnexpectedResult(qc.Type, res.Result)
	}
	return rows, nil
}

func (r *RoutingDataSource) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	qc, err := r.route(ctx, TypeExec, query)
	if err != nil {
		return nil, err
	}
	res := r.handler(ctx, qc)
	if res.Err != nil {
		return nil, res.Err
	}
	result, ok := res.Result.(sql.Result)
	if !ok {
		return nil, errs.NewErrUnexpectedResult(qc.Type, res.Result)
	}
	return result, nil
}

func (r *RoutingDataSource) route(ctx context.Context, typ string, query datasource.Query) (*QueryContext, error) {
	qc := &QueryContext{Type: typ, Query: query}
	if sel, ok := SelectionFrom(ctx); ok {
		if tx := sel.Tx(); tx != nil {
			qc.DataSource = tx.Descriptor()
			qc.InTx = true
			qc.executor = tx
		}
	}
	if qc.executor == nil {
		desc, ds, err := r.Current(ctx)
		if err != nil {
			return nil, err
		}
		qc.DataSource = desc
		qc.executor = ds
	}
	if typ == TypeExec && !qc.DataSource.Writable {
		return nil, errs.NewErrReadOnlyDataSource(qc.DataSource.Name)
	}
	qc.Query.Datasource = qc.DataSource.Name
	return qc, nil
}

// BeginTx 在当前数据源上开启一个裸事务，不做任何绑定。
// 需要绑定数据源的事务请使用 TxManager
func (r *RoutingDataSource) BeginTx(ctx context.Context, opts *sql.TxOptions) (datasource.Tx, error) {
	desc, ds, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	beginner, ok := ds.(datasource.TxBeginner)
	if !ok {
		return nil, errs.NewErrNotTxBeginner(desc.Name)
	}
	return beginner.BeginTx(ctx, opts)
}

// AddDataSource 运行期注册新的数据源，路由表原子替换
func (r *RoutingDataSource) AddDataSource(desc Descriptor, ds datasource.DataSource) error {
	if err := r.registry.Register(desc, ds); err != nil {
		return err
	}
	r.logger.WithField("datasource", desc.Name).Info("eroute: 已添加数据源")
	return nil
}

func (r *RoutingDataSource) Registry() *Registry {
	return r.registry
}

func (r *RoutingDataSource) Close() error {
	return r.registry.Close()
}
