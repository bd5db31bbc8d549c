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
	"sync"

	"github.com/ecodeclub/ekit/list"
)

type selectionKey struct{}

// Selection 一个执行上下文（一个 goroutine、一次请求或者一个池化的 worker）里
// 数据源选择的栈，以及当前绑定的事务。
// 只允许持有它的那个执行上下文修改，并发的任务应该通过 Fork 拿到自己的 Selection
type Selection struct {
	mu sync.Mutex
	// 栈顶在末尾。栈为空的时候置为 nil，避免复用的执行上下文残留状态
	stack *list.ArrayList[string]
	tx    *Tx
}

// NewContext 在 ctx 上挂一个新的、空的 Selection
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, selectionKey{}, &Selection{})
}

func SelectionFrom(ctx context.Context) (*Selection, bool) {
	sel, ok := ctx.Value(selectionKey{}).(*Selection)
	return sel, ok && sel != nil
}

// Fork 为子任务创建执行上下文。
// 子任务只拿到父任务栈顶的快照，之后两边互不影响；事务绑定不会被继承
func Fork(ctx context.Context) context.Context {
	child := &Selection{}
	if parent, ok := SelectionFrom(ctx); ok {
		if name, ok := parent.Peek(); ok {
			child.Push(name)
		}
	}
	return context.WithValue(ctx, selectionKey{}, child)
}

func ensureSelection(ctx context.Context) (context.Context, *Selection) {
	if sel, ok := SelectionFrom(ctx); ok {
		return ctx, sel
	}
	sel := &Selection{}
	return context.WithValue(ctx, selectionKey{}, sel), sel
}

func (s *Selection) Push(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stack == nil {
		s.stack = list.NewArrayList[string](4)
	}
	_ = s.stack.Append(name)
}

func (s *Selection) Peek() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stack == nil || s.stack.Len() == 0 {
		return "", false
	}
	name, err := s.stack.Get(s.stack.Len() - 1)
	return name, err == nil
}

// Pop 弹出栈顶，空栈上调用什么也不做
func (s *Selection) Pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stack == nil {
		return
	}
	if s.stack.Len() > 0 {
		_, _ = s.stack.Delete(s.stack.Len() - 1)
	}
	if s.stack.Len() == 0 {
		s.stack = nil
	}
}

// Clear 清空整个栈，事务结束时调用
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = nil
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stack == nil {
		return 0
	}
	return s.stack.Len()
}

// Tx 返回当前执行上下文绑定的事务，没有则返回 nil
func (s *Selection) Tx() *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

func (s *Selection) bind(tx *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx = tx
}

func (s *Selection) unbind(tx *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == tx {
		s.tx = nil
	}
}
