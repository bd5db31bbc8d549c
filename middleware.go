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

	"github.com/ecodeclub/eroute/internal/datasource"
)

const (
	TypeQuery = "QUERY"
	TypeExec  = "EXEC"
)

// QueryContext 路由完成之后、真正执行之前的上下文
type QueryContext struct {
	// Type 为 TypeQuery 或者 TypeExec
	Type string
	// DataSource 语句被路由到的数据源
	DataSource Descriptor
	// InTx 语句是否在事务里执行
	InTx  bool
	Query datasource.Query

	executor datasource.Executor
}

type QueryResult struct {
	// Result 为 *sql.Rows 或者 sql.Result
	Result any
	Err    error
}

type Middleware func(next HandleFunc) HandleFunc

type HandleFunc func(ctx context.Context, qc *QueryContext) *QueryResult

func execute(ctx context.Context, qc *QueryContext) *QueryResult {
	if qc.Type == TypeExec {
		res, err := qc.executor.Exec(ctx, qc.Query)
		return &QueryResult{Result: res, Err: err}
	}
	rows, err := qc.executor.Query(ctx, qc.Query)
	return &QueryResult{Result: rows, Err: err}
}

func buildChain(ms []Middleware) HandleFunc {
	root := HandleFunc(execute)
	for i := len(ms) - 1; i >= 0; i-- {
		root = ms[i](root)
	}
	return root
}
