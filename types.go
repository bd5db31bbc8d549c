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
	"github.com/ecodeclub/eroute/internal/datasource/masterslave"
	"github.com/ecodeclub/eroute/internal/datasource/single"
)

type (
	Query      = datasource.Query
	DataSource = datasource.DataSource
	TxBeginner = datasource.TxBeginner
)

// NewSingleDataSource 把一个 *sql.DB 包装成可以注册的数据源
func NewSingleDataSource(db *sql.DB) DataSource {
	return single.NewDB(db)
}

// UseMaster 配置了从库的数据源，读请求也走主库
func UseMaster(ctx context.Context) context.Context {
	return masterslave.UseMaster(ctx)
}
