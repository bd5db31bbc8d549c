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

import "github.com/ecodeclub/eroute/internal/errs"

var (
	// ErrUnknownDataSource 数据源未注册，使用 errors.Is 判断
	ErrUnknownDataSource = errs.ErrUnknownDataSource
	// ErrDuplicateDataSource 数据源重复注册
	ErrDuplicateDataSource = errs.ErrDuplicateDataSource
	// ErrSwitchRefused 只出现在告警日志里
	ErrSwitchRefused      = errs.ErrSwitchRefused
	ErrReadOnlyDataSource = errs.ErrReadOnlyDataSource
	ErrNoSelection        = errs.ErrNoSelection
	ErrTxAlreadyActive    = errs.ErrTxAlreadyActive
	ErrInvalidDescriptor  = errs.ErrInvalidDescriptor
	// ErrUnexpectedResult middleware 返回的 Result 类型和语句类型不匹配
	ErrUnexpectedResult = errs.ErrUnexpectedResult
)
