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

package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDataSource 数据源未注册
	// 属于配置错误，不会重试
	ErrUnknownDataSource = errors.New("eroute: 未知数据源")
	// ErrDuplicateDataSource 重复注册数据源，启动阶段应该直接失败
	ErrDuplicateDataSource = errors.New("eroute: 数据源重复注册")
	// ErrSwitchRefused 在已有事务中切换数据源被拒绝
	// 只会出现在日志里，不会返回给调用者
	ErrSwitchRefused = errors.New("eroute: 事务中禁止切换数据源")
	// ErrReadOnlyDataSource 向只读数据源写入
	ErrReadOnlyDataSource = errors.New("eroute: 数据源只读")
	// ErrNoSelection context 中没有数据源选择上下文
	ErrNoSelection = errors.New("eroute: context 中未找到 Selection，请先调用 NewContext")
	// ErrTxAlreadyActive 当前执行上下文已经绑定了事务
	ErrTxAlreadyActive = errors.New("eroute: 当前上下文已存在活跃事务")
	// ErrInvalidDescriptor 数据源描述不合法
	ErrInvalidDescriptor = errors.New("eroute: 数据源描述不合法")
	ErrSlaveNotFound     = errors.New("eroute: slave不存在")
	// ErrNotCompleteTxBeginner 数据源不支持开启事务
	ErrNotCompleteTxBeginner = errors.New("eroute: 未实现 TxBeginner 接口")
	// ErrUnsupportedDriver 不支持的 driver
	ErrUnsupportedDriver = errors.New("eroute: 不支持的 driver")
	ErrInvalidDSN        = errors.New("eroute: 不正确的 DSN")
	// ErrUnexpectedResult 一般是 middleware 改写了 QueryResult.Result
	ErrUnexpectedResult = errors.New("eroute: 执行结果类型不正确")
)

func NewErrUnknownDataSource(name string) error {
	return fmt.Errorf("%w %s", ErrUnknownDataSource, name)
}

func NewErrDuplicateDataSource(name string) error {
	return fmt.Errorf("%w %s", ErrDuplicateDataSource, name)
}

func NewErrSwitchRefused(bound, requested string) error {
	return fmt.Errorf("%w： 已绑定 %s，请求 %s", ErrSwitchRefused, bound, requested)
}

func NewErrReadOnlyDataSource(name string) error {
	return fmt.Errorf("%w %s", ErrReadOnlyDataSource, name)
}

func NewErrTxAlreadyActive(name string) error {
	return fmt.Errorf("%w，绑定数据源 %s", ErrTxAlreadyActive, name)
}

func NewErrInvalidDescriptor(reason string) error {
	return fmt.Errorf("%w： %s", ErrInvalidDescriptor, reason)
}

func NewErrUnsupportedDriver(driver string) error {
	return fmt.Errorf("%w %s", ErrUnsupportedDriver, driver)
}

func NewErrInvalidDSN(name string, err error) error {
	return fmt.Errorf("%w，数据源 %s： %v", ErrInvalidDSN, name, err)
}

func NewErrNotTxBeginner(name string) error {
	return fmt.Errorf("%w，数据源 %s", ErrNotCompleteTxBeginner, name)
}

func NewErrUnexpectedResult(typ string, result any) error {
	return fmt.Errorf("%w，%s 语句得到了 %T", ErrUnexpectedResult, typ, result)
}
