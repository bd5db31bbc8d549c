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

package masterslave

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/datasource/masterslave/slaves"
	"github.com/ecodeclub/eroute/internal/datasource/transaction"
	"go.uber.org/multierr"
)

var _ datasource.TxBeginner = &MasterSlavesDB{}
var _ datasource.DataSource = &MasterSlavesDB{}

// MasterSlavesDB 一个逻辑数据源背后的一主多从。
// 路由层只看到一个名字，读写分离在这里完成：
// 写、事务和 Conn 都走主库；读默认走从库，没有从库或者 UseMaster 时走主库
type MasterSlavesDB struct {
	master *sql.DB
	slaves slaves.Slaves
}

type useMasterKey struct{}

type MasterSlavesDBOption func(db *MasterSlavesDB)

func MasterSlavesWithSlaves(s slaves.Slaves) MasterSlavesDBOption {
	return func(db *MasterSlavesDB) {
		db.slaves = s
	}
}

func NewMasterSlavesDB(master *sql.DB, opts ...MasterSlavesDBOption) *MasterSlavesDB {
	db := &MasterSlavesDB{
		master: master,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// UseMaster 强制读请求走主库，常用于写后立刻读
func UseMaster(ctx context.Context) context.Context {
	return context.WithValue(ctx, useMasterKey{}, true)
}

func (m *MasterSlavesDB) reader(ctx context.Context) (*sql.DB, error) {
	if force, _ := ctx.Value(useMasterKey{}).(bool); force || m.slaves == nil {
		return m.master, nil
	}
	slave, err := m.slaves.Next(ctx)
	if err != nil {
		return nil, err
	}
	return slave.DB, nil
}

func (m *MasterSlavesDB) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	db, err := m.reader(ctx)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, query.SQL, query.Args...)
}

func (m *MasterSlavesDB) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	return m.master.ExecContext(ctx, query.SQL, query.Args...)
}

func (m *MasterSlavesDB) Conn(ctx context.Context) (*sql.Conn, error) {
	return m.master.Conn(ctx)
}

// Ping 只检查主库，从库不可用时读请求仍然可以 UseMaster
func (m *MasterSlavesDB) Ping(ctx context.Context) error {
	return m.master.PingContext(ctx)
}

// BeginTx 事务总是开在主库上，事务内的读也不会被分到从库
func (m *MasterSlavesDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (datasource.Tx, error) {
	tx, err := m.master.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return transaction.NewTx(tx), nil
}

// Close 主库和从库都会关闭，错误合并返回
func (m *MasterSlavesDB) Close() error {
	var err error
	if er := m.master.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("master error: %w", er))
	}
	if m.slaves != nil {
		err = multierr.Append(err, m.slaves.Close())
	}
	return err
}
