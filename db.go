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
	"fmt"

	"github.com/ecodeclub/eroute/config"
	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/datasource/masterslave"
	"github.com/ecodeclub/eroute/internal/datasource/masterslave/slaves/roundrobin"
	"github.com/ecodeclub/eroute/internal/datasource/single"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// DB 把注册表、路由数据源、事务管理器和拦截器组装在一起
type DB struct {
	registry    *Registry
	rds         *RoutingDataSource
	txm         *TxManager
	interceptor *Interceptor
	defaultName string
	ms          []Middleware
	logger      logrus.FieldLogger
}

type DBOption func(db *DB)

func DBWithMiddlewares(ms ...Middleware) DBOption {
	return func(db *DB) {
		db.ms = ms
	}
}

func DBWithLogger(logger logrus.FieldLogger) DBOption {
	return func(db *DB) {
		db.logger = logger
	}
}

func DBWithDefault(name string) DBOption {
	return func(db *DB) {
		db.defaultName = name
	}
}

// OpenDS 使用已经注册好的数据源创建 DB。
// 默认数据源必须已经注册，否则返回 ErrUnknownDataSource
func OpenDS(registry *Registry, opts ...DBOption) (*DB, error) {
	db := &DB{
		registry:    registry,
		defaultName: DefaultName,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	if _, err := registry.Descriptor(db.defaultName); err != nil {
		return nil, err
	}
	db.rds = NewRoutingDataSource(registry,
		RoutingWithDefault(db.defaultName),
		RoutingWithMiddlewares(db.ms...),
		RoutingWithLogger(db.logger))
	db.txm = NewTxManager(db.rds, TxManagerWithLogger(db.logger))
	db.interceptor = NewInterceptor(
		InterceptorWithDefault(db.defaultName),
		InterceptorWithLogger(db.logger))
	return db, nil
}

// Open 按配置打开所有数据源。
// 任意一个数据源打开失败时，已经打开的数据源会被关闭
func Open(cfg *config.Config, opts ...DBOption) (*DB, error) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)
	opts = append([]DBOption{DBWithLogger(logger), DBWithDefault(cfg.Default)}, opts...)

	registry := NewRegistry()
	for _, dc := range cfg.DataSources {
		ds, err := openDataSource(dc)
		if err == nil {
			err = registry.Register(Descriptor{
				Name:        dc.Name,
				Writable:    !dc.ReadOnly,
				DisplayName: dc.DisplayName,
			}, ds)
			if err != nil {
				err = multierr.Append(err, ds.Close())
			}
		}
		if err != nil {
			return nil, multierr.Append(err, registry.Close())
		}
		logger.WithFields(logrus.Fields{
			"datasource": dc.Name,
			"dsn":        dc.Redacted(),
			"slaves":     len(dc.Slaves),
		}).Info("eroute: 已加载数据源")
	}

	if cfg.PingOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
		err = registry.PingAll(ctx)
		cancel()
		if err != nil {
			return nil, multierr.Append(err, registry.Close())
		}
	}
	db, err := OpenDS(registry, opts...)
	if err != nil {
		return nil, multierr.Append(err, registry.Close())
	}
	return db, nil
}

func openDataSource(dc config.DataSource) (datasource.DataSource, error) {
	master, err := openPool(dc.Driver, dc.DSN, dc.Pool)
	if err != nil {
		return nil, err
	}
	if len(dc.Slaves) == 0 {
		return single.NewDB(master), nil
	}
	dbs := make([]*sql.DB, 0, len(dc.Slaves))
	for _, dsn := range dc.Slaves {
		slave, er := openPool(dc.Driver, dsn, dc.Pool)
		if er != nil {
			err = multierr.Append(er, master.Close())
			for _, opened := range dbs {
				err = multierr.Append(err, opened.Close())
			}
			return nil, err
		}
		dbs = append(dbs, slave)
	}
	sl, err := roundrobin.NewSlaves(dc.Name, dbs...)
	if err != nil {
		return nil, err
	}
	return masterslave.NewMasterSlavesDB(master, masterslave.MasterSlavesWithSlaves(sl)), nil
}

func openPool(driver, dsn string, pool config.PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("eroute: 打开连接池失败: %w", err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	return db, nil
}

// WithDataSource 在数据源 name 上执行 op
func (db *DB) WithDataSource(ctx context.Context, name string, op Operation) error {
	return db.interceptor.Around(ctx, name, op)
}

// InTx 在事务中执行 fn，数据源取决于调用时的选择
func (db *DB) InTx(ctx context.Context, opts *sql.TxOptions, fn Operation) error {
	return db.txm.InTx(ctx, opts, fn)
}

// WithDataSourceTx 先切换到数据源 name，再开启事务。
// 事务由本次调用开启，所以允许切换；如果外层已经有事务，则加入外层事务
func (db *DB) WithDataSourceTx(ctx context.Context, name string, opts *sql.TxOptions, fn Operation) error {
	return db.interceptor.Around(ctx, name, func(ctx context.Context) error {
		return db.txm.InTx(ctx, opts, fn)
	})
}

// BeginTx 开启绑定数据源的事务，ctx 必须带有 Selection
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	return db.txm.BeginTx(ctx, opts)
}

func (db *DB) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	return db.rds.Query(ctx, query)
}

func (db *DB) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	return db.rds.Exec(ctx, query)
}

func (db *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	return db.rds.Conn(ctx)
}

func (db *DB) RoutingDataSource() *RoutingDataSource {
	return db.rds
}

func (db *DB) Registry() *Registry {
	return db.registry
}

func (db *DB) Interceptor() *Interceptor {
	return db.interceptor
}

func (db *DB) TxManager() *TxManager {
	return db.txm
}

func (db *DB) Close() error {
	return db.registry.Close()
}
