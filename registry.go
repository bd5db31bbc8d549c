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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ecodeclub/ekit/mapx"
	"github.com/ecodeclub/eroute/internal/datasource"
	"github.com/ecodeclub/eroute/internal/errs"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type registryEntry struct {
	desc Descriptor
	ds   datasource.DataSource
}

// Registry 持有所有命名的物理数据源。
// 读是无锁的：路由表整体替换（copy-on-write），写操作之间用 mu 串行化
type Registry struct {
	mu    sync.Mutex
	table atomic.Pointer[map[string]registryEntry]
}

func NewRegistry() *Registry {
	r := &Registry{}
	m := make(map[string]registryEntry, 4)
	r.table.Store(&m)
	return r
}

func (r *Registry) load() map[string]registryEntry {
	return *r.table.Load()
}

// Register 注册一个数据源。
// 名字已经存在时返回 ErrDuplicateDataSource，不会覆盖已有的数据源
func (r *Registry) Register(desc Descriptor, ds datasource.DataSource) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if ds == nil {
		return errs.NewErrInvalidDescriptor(fmt.Sprintf("数据源 %s 为 nil", desc.Name))
	}
	key := desc.key()
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.load()
	if _, ok := old[key]; ok {
		return errs.NewErrDuplicateDataSource(desc.Name)
	}
	m := make(map[string]registryEntry, len(old)+1)
	for k, v := range old {
		m[k] = v
	}
	m[key] = registryEntry{desc: desc, ds: ds}
	r.table.Store(&m)
	return nil
}

func (r *Registry) lookup(name string) (registryEntry, error) {
	entry, ok := r.load()[nameKey(name)]
	if !ok {
		return registryEntry{}, errs.NewErrUnknownDataSource(name)
	}
	return entry, nil
}

// Resolve 按名字查找物理数据源
func (r *Registry) Resolve(name string) (datasource.DataSource, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.ds, nil
}

func (r *Registry) Descriptor(name string) (Descriptor, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return Descriptor{}, err
	}
	return entry.desc, nil
}

// ListNames 返回排好序的数据源名字
func (r *Registry) ListNames() []string {
	m := r.load()
	keys := mapx.Keys[string, registryEntry](m)
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, m[k].desc.Name)
	}
	sort.Strings(names)
	return names
}

// PingAll 并发检查所有数据源，返回第一个失败
func (r *Registry) PingAll(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, entry := range r.load() {
		e := entry
		eg.Go(func() error {
			if err := e.ds.Ping(ctx); err != nil {
				return fmt.Errorf("eroute: 数据源 %s ping 失败: %w", e.desc.Name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (r *Registry) Close() error {
	var err error
	for _, entry := range r.load() {
		if er := entry.ds.Close(); er != nil {
			err = multierr.Combine(
				err, fmt.Errorf("datasource name [%s] error: %w", entry.desc.Name, er))
		}
	}
	return err
}
