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

package roundrobin

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/ecodeclub/eroute/internal/datasource/masterslave/slaves"
	"github.com/ecodeclub/eroute/internal/errs"
	"go.uber.org/multierr"
)

var _ slaves.Slaves = &Slaves{}

// Slaves 按轮询的方式挑选同一个逻辑数据源下的从库
type Slaves struct {
	slaves []slaves.Slave
	cnt    uint32
}

// NewSlaves 从库按 name-slave-序号 命名，关闭失败时可以定位到具体的 DSN
func NewSlaves(name string, dbs ...*sql.DB) (*Slaves, error) {
	res := make([]slaves.Slave, 0, len(dbs))
	for idx, db := range dbs {
		res = append(res, slaves.Slave{
			SlaveName: fmt.Sprintf("%s-slave-%d", name, idx),
			DB:        db,
		})
	}
	return &Slaves{slaves: res}, nil
}

func (r *Slaves) Next(ctx context.Context) (slaves.Slave, error) {
	if err := ctx.Err(); err != nil {
		return slaves.Slave{}, err
	}
	if r == nil || len(r.slaves) == 0 {
		return slaves.Slave{}, errs.ErrSlaveNotFound
	}
	idx := (atomic.AddUint32(&r.cnt, 1) - 1) % uint32(len(r.slaves))
	return r.slaves[idx], nil
}

func (r *Slaves) Close() error {
	var err error
	for _, inst := range r.slaves {
		if er := inst.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("slave DB name [%s] error: %w", inst.SlaveName, er))
		}
	}
	return err
}
