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
	"sync/atomic"

	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/errs"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type TxState int32

const (
	TxNotStarted TxState = iota
	TxActive
	TxCompleting
	TxDone
)

func (s TxState) String() string {
	switch s {
	case TxNotStarted:
		return "NotStarted"
	case TxActive:
		return "Active"
	case TxCompleting:
		return "Completing"
	case TxDone:
		return "Done"
	default:
		return "Unknown"
	}
}

var _ datasource.Tx = &Tx{}

// Tx 绑定了数据源的事务。
// 绑定在开启时确定，整个生命周期内不可变，优先级高于 Selection 栈
type Tx struct {
	desc   Descriptor
	tx     datasource.Tx
	sel    *Selection
	state  atomic.Int32
	logger logrus.FieldLogger
}

// Name 事务绑定的数据源名字
func (t *Tx) Name() string {
	return t.desc.Name
}

func (t *Tx) Descriptor() Descriptor {
	return t.desc
}

func (t *Tx) State() TxState {
	return TxState(t.state.Load())
}

func (t *Tx) Query(ctx context.Context, query datasource.Query) (*sql.Rows, error) {
	if t.State() != TxActive {
		return nil, sql.ErrTxDone
	}
	query.Datasource = t.desc.Name
	return t.tx.Query(ctx, query)
}

func (t *Tx) Exec(ctx context.Context, query datasource.Query) (sql.Result, error) {
	if t.State() != TxActive {
		return nil, sql.ErrTxDone
	}
	query.Datasource = t.desc.Name
	return t.tx.Exec(ctx, query)
}

func (t *Tx) Commit() error {
	return t.complete("commit", t.tx.Commit)
}

func (t *Tx) Rollback() error {
	return t.complete("rollback", t.tx.Rollback)
}

// complete 不管提交或回滚是否成功，都会解除绑定并清空 Selection，
// 保证复用的执行上下文不会带着旧的数据源进入下一次调用
func (t *Tx) complete(action string, fn func() error) error {
	if !t.state.CompareAndSwap(int32(TxActive), int32(TxCompleting)) {
		return sql.ErrTxDone
	}
	defer func() {
		t.sel.unbind(t)
		t.sel.Clear()
		t.state.Store(int32(TxDone))
	}()
	err := fn()
	entry := t.logger.WithFields(logrus.Fields{"tx": action, "datasource": t.desc.Name})
	if err != nil {
		entry.WithError(err).Error("eroute: 事务结束失败")
	} else {
		entry.Debug("eroute: 事务结束")
	}
	return err
}

// TxManager 在开启事务时锁定数据源
type TxManager struct {
	rds    *RoutingDataSource
	logger logrus.FieldLogger
}

type TxManagerOption func(m *TxManager)

func NewTxManager(rds *RoutingDataSource, opts ...TxManagerOption) *TxManager {
	m := &TxManager{
		rds:    rds,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func TxManagerWithLogger(logger logrus.FieldLogger) TxManagerOption {
	return func(m *TxManager) {
		m.logger = logger
	}
}

// BeginTx 读取当前的选择（没有则使用默认数据源并压栈），解析出物理数据源，
// 绑定之后在该数据源上开启事务。任何一步失败都不会留下绑定或者栈的修改
func (m *TxManager) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	sel, ok := SelectionFrom(ctx)
	if !ok {
		return nil, errs.ErrNoSelection
	}
	if cur := sel.Tx(); cur != nil {
		return nil, errs.NewErrTxAlreadyActive(cur.Name())
	}
	name, ok := sel.Peek()
	pushed := false
	if !ok {
		name = m.rds.DefaultName()
		sel.Push(name)
		pushed = true
	}
	undo := func() {
		if pushed {
			sel.Pop()
		}
	}
	entry, err := m.rds.registry.lookup(name)
	if err != nil {
		undo()
		return nil, err
	}
	beginner, ok := entry.ds.(datasource.TxBeginner)
	if !ok {
		undo()
		return nil, errs.NewErrNotTxBeginner(entry.desc.Name)
	}

	tx := &Tx{desc: entry.desc, sel: sel, logger: m.logger}
	sel.bind(tx)
	raw, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		sel.unbind(tx)
		undo()
		return nil, err
	}
	tx.tx = raw
	tx.state.Store(int32(TxActive))
	if top, _ := sel.Peek(); nameKey(top) != entry.desc.key() {
		sel.Push(entry.desc.Name)
	}
	m.logger.WithField("datasource", entry.desc.Name).Debug("eroute: 事务锁定数据源")
	return tx, nil
}

// InTx 在事务中执行 fn。
// 已经存在事务时直接加入该事务；否则开启新事务，fn 返回 nil 时提交，返回 error 或者 panic 时回滚
func (m *TxManager) InTx(ctx context.Context, opts *sql.TxOptions, fn Operation) (err error) {
	ctx, sel := ensureSelection(ctx)
	if sel.Tx() != nil {
		return fn(ctx)
	}
	tx, err := m.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if er := tx.Rollback(); er != nil {
				err = multierr.Append(err, er)
			}
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx)
}
