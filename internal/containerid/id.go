/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package containerid provides hierarchical container identifiers.
// containerid 包提供层级化的容器标识符。
//
// An identifier is a value plus an optional parent, so nested containers form
// a tree. The canonical string form joins the chain from the root with ".".
// 标识符由值和可选的父标识符组成，嵌套容器形成一棵树。规范字符串形式从根开始用 "." 连接。
package containerid

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the values of an identifier chain in its string form
// Separator 在字符串形式中连接标识符链的各个值
const Separator = "."

// MaxDepth bounds the length of a parent chain.
// MaxDepth 限制父链的长度。
const MaxDepth = 32

// ErrInvalid indicates a malformed container identifier
// ErrInvalid 表示格式错误的容器标识符
var ErrInvalid = errors.New("invalid container id")

// ID identifies a container, optionally nested inside a parent container.
// ID 标识一个容器，可选地嵌套在父容器中。
type ID struct {
	// Value is the label of this level of the hierarchy
	// Value 是该层级的标签
	Value string `json:"value" yaml:"value"`

	// Parent is the enclosing container, nil for a top-level container
	// Parent 是外层容器，顶层容器为 nil
	Parent *ID `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// New creates a top-level identifier.
// New 创建顶层标识符。
func New(value string) (*ID, error) {
	if err := validateValue(value); err != nil {
		return nil, err
	}
	return &ID{Value: value}, nil
}

// MustNew is like New but panics on an invalid value. Intended for tests and constants.
func MustNew(value string) *ID {
	id, err := New(value)
	if err != nil {
		panic(err)
	}
	return id
}

// Child creates an identifier nested inside id.
// Child 创建嵌套在 id 内的标识符。
func (id *ID) Child(value string) (*ID, error) {
	if err := validateValue(value); err != nil {
		return nil, err
	}
	child := &ID{Value: value, Parent: id}
	if child.Depth() > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d levels", ErrInvalid, MaxDepth)
	}
	return child, nil
}

// Parse parses the canonical "root.child.grandchild" form.
// Parse 解析规范形式 "root.child.grandchild"。
func Parse(s string) (*ID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalid)
	}

	var id *ID
	for _, part := range strings.Split(s, Separator) {
		if id == nil {
			root, err := New(part)
			if err != nil {
				return nil, err
			}
			id = root
			continue
		}
		child, err := id.Child(part)
		if err != nil {
			return nil, err
		}
		id = child
	}
	return id, nil
}

// FromChain builds an identifier from its values ordered root first.
// FromChain 根据从根开始排序的值构建标识符。
func FromChain(chain []string) (*ID, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrInvalid)
	}
	return Parse(strings.Join(chain, Separator))
}

// HasParent reports whether id is nested in another container.
func (id *ID) HasParent() bool {
	return id.Parent != nil
}

// Root returns the outermost ancestor of id (id itself when it has no parent).
// Root 返回 id 的最外层祖先（无父容器时返回自身）。
func (id *ID) Root() *ID {
	cur := id
	for i := 0; cur.Parent != nil && i < MaxDepth; i++ {
		cur = cur.Parent
	}
	return cur
}

// Depth returns the number of levels in the chain, 1 for a top-level id.
// The count stops one past MaxDepth so self-referential chains terminate.
func (id *ID) Depth() int {
	depth := 0
	for cur := id; cur != nil; cur = cur.Parent {
		depth++
		if depth > MaxDepth {
			break
		}
	}
	return depth
}

// Chain returns the values of id ordered root first.
// Chain 返回从根开始排序的 id 值列表。
func (id *ID) Chain() []string {
	var chain []string
	for cur := id; cur != nil && len(chain) <= MaxDepth; cur = cur.Parent {
		chain = append(chain, cur.Value)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// String returns the canonical form, e.g. "root.child".
func (id *ID) String() string {
	if id == nil {
		return ""
	}
	return strings.Join(id.Chain(), Separator)
}

// Equal reports whether both identifiers have the same chain.
// Equal 判断两个标识符的链是否相同。
func (id *ID) Equal(other *ID) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.String() == other.String()
}

// Validate checks every level of the chain and the chain depth.
// Validate 检查链的每一层以及链的深度。
func (id *ID) Validate() error {
	if id == nil {
		return fmt.Errorf("%w: nil", ErrInvalid)
	}
	if id.Depth() > MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d levels", ErrInvalid, MaxDepth)
	}
	for cur := id; cur != nil; cur = cur.Parent {
		if err := validateValue(cur.Value); err != nil {
			return err
		}
	}
	return nil
}

// validateValue checks a single level. Values end up as directory names, so
// path separators and dot-only names are rejected, and "." is reserved for
// the canonical string form.
func validateValue(value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalid)
	}
	if strings.ContainsAny(value, `/\`+Separator) {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalid, value)
	}
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalid, value)
		}
	}
	return nil
}
