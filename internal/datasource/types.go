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

package datasource

import (
	"context"
	"database/sql"
)

// Query 一条需要执行的语句
type Query struct {
	SQL  string
	Args []any
	// Datasource 语句最终落到的数据源名字，由路由层填充，仅用于观测
	Datasource string
}

type Executor interface {
	Query(ctx context.Context, query Query) (*sql.Rows, error)
	Exec(ctx context.Context, query Query) (sql.Result, error)
}

// DataSource 物理数据源，连接池本身由 database/sql 管理
type DataSource interface {
	Executor
	// Conn 从连接池中获取一个连接，
	// 连接池的阻塞和超时行为原样透传
	Conn(ctx context.Context) (*sql.Conn, error)
	Ping(ctx context.Context) error
	Close() error
}

type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

type Tx interface {
	Executor
	Commit() error
	Rollback() error
}
