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

// Package single 是没有从库的物理数据源，
// 注册中心里的一个名字对应一个 *sql.DB
package single

import (
	"context"
	"database/sql"

	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/datasource/transaction"
)

var _ datasource.TxBeginner = &DB{}
var _ datasource.DataSource = &DB{}

// DB 路由的终点之一。
// 它不感知 Selection，读写和事务都直接落在同一个连接池上
type DB struct {
	pool *sql.DB
}

func NewDB(pool *sql.DB) *DB {
	return &DB{pool: pool}
}

func (db *DB) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	return db.pool.QueryContext(ctx, query.SQL, query.Args...)
}

func (db *DB) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	return db.pool.ExecContext(ctx, query.SQL, query.Args...)
}

// Conn 取出一个独占连接，超时和取消由 ctx 决定
func (db *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	return db.pool.Conn(ctx)
}

// Ping 供 Registry.PingAll 做启动检查
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.PingContext(ctx)
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (datasource.Tx, error) {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return transaction.NewTx(tx), nil
}

func (db *DB) Close() error {
	return db.pool.Close()
}
