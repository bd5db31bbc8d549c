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

package querylog

import (
	"context"
	"fmt"

	"github.com/ecodeclub/eroute"
	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"
)

// MiddlewareBuilder 打印每条语句以及它被路由到的数据源
type MiddlewareBuilder struct {
	logFunc func(datasource string, sql string, args ...any)
}

func NewBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{
		logFunc: func(datasource string, sql string, args ...any) {
			logrus.WithField("datasource", datasource).Info(format(sql, args))
		},
	}
}

func (b *MiddlewareBuilder) LogFunc(logFunc func(datasource string, sql string, args ...any)) *MiddlewareBuilder {
	b.logFunc = logFunc
	return b
}

func (b *MiddlewareBuilder) Build() eroute.Middleware {
	return func(next eroute.HandleFunc) eroute.HandleFunc {
		return func(ctx context.Context, qc *eroute.QueryContext) *eroute.QueryResult {
			b.logFunc(qc.DataSource.Name, qc.Query.SQL, qc.Query.Args...)
			return next(ctx, qc)
		}
	}
}

func format(sql string, args []any) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(sql)
	if len(args) > 0 {
		_, _ = buf.WriteString(" ")
		_, _ = buf.WriteString(fmt.Sprint(args))
	}
	return buf.String()
}
