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
	"strings"

	"github.com/ecodeclub/eroute/internal/errs"
)

const (
	// Master 主库
	Master = "master"
	// PG PostgreSQL 库
	PG = "pg"
	// DefaultName 没有任何选择时使用的数据源
	DefaultName = Master
)

// Descriptor 描述一个逻辑数据源，注册之后不可变。
// Name 不区分大小写，是数据源的唯一标识
type Descriptor struct {
	Name        string
	Writable    bool
	DisplayName string
}

func (d Descriptor) key() string {
	return nameKey(d.Name)
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errs.NewErrInvalidDescriptor("数据源名字不能为空")
	}
	return nil
}

func (d Descriptor) String() string {
	if d.DisplayName == "" {
		return d.Name
	}
	return d.Name + "(" + d.DisplayName + ")"
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
