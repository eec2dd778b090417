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

package containerid

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewAndChild tests building a nested identifier
// TestNewAndChild 测试构建嵌套标识符
func TestNewAndChild(t *testing.T) {
	root, err := New("root")
	require.NoError(t, err)
	assert.False(t, root.HasParent())
	assert.Equal(t, 1, root.Depth())

	child, err := root.Child("child")
	require.NoError(t, err)
	assert.True(t, child.HasParent())
	assert.Equal(t, 2, child.Depth())
	assert.Equal(t, "root.child", child.String())
	assert.Equal(t, []string{"root", "child"}, child.Chain())
	assert.Same(t, root, child.Root())
}

// TestInvalidValues tests value validation
// TestInvalidValues 测试值校验
func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"slash", "a/b"},
		{"backslash", `a\b`},
		{"dot", "."},
		{"dotdot", ".."},
		{"separator", "a.b"},
		{"newline", "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.value)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

// TestParse tests parsing of the canonical form
// TestParse 测试规范形式的解析
func TestParse(t *testing.T) {
	id, err := Parse("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "c", id.Value)
	assert.Equal(t, "b", id.Parent.Value)
	assert.Equal(t, "a", id.Root().Value)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse("a..b")
	assert.ErrorIs(t, err, ErrInvalid)
}

// TestMaxDepth tests that nesting is bounded
// TestMaxDepth 测试嵌套深度受限
func TestMaxDepth(t *testing.T) {
	parts := make([]string, MaxDepth)
	for i := range parts {
		parts[i] = "c"
	}
	_, err := FromChain(parts)
	require.NoError(t, err)

	_, err = FromChain(append(parts, "c"))
	assert.ErrorIs(t, err, ErrInvalid)
}

// TestSelfReferenceTerminates tests that a cyclic chain does not loop forever
// TestSelfReferenceTerminates 测试循环链不会无限循环
func TestSelfReferenceTerminates(t *testing.T) {
	id := &ID{Value: "loop"}
	id.Parent = id

	assert.Equal(t, MaxDepth+1, id.Depth())
	assert.ErrorIs(t, id.Validate(), ErrInvalid)
	assert.Len(t, id.Chain(), MaxDepth+1)
}

// TestEqual tests identifier comparison
func TestEqual(t *testing.T) {
	a, _ := Parse("x.y")
	b, _ := Parse("x.y")
	c, _ := Parse("y")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*ID)(nil).Equal(nil))
}

// genChain generates identifier chains within the depth limit
// genChain 生成深度限制内的标识符链
func genChain() gopter.Gen {
	return gen.IntRange(1, 6).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), gen.Identifier())
	}, reflect.TypeOf([]string{}))
}

// **Feature: container-launcher, Property 1: Identifier Chain Preservation**
//
// For any chain of valid values, the identifier built from it reports the
// same chain, depth and canonical string.
// 对于任何有效值链，由其构建的标识符应报告相同的链、深度和规范字符串。
func TestProperty_ChainPreserved(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("FromChain preserves chain, depth and string form", prop.ForAll(
		func(chain []string) bool {
			id, err := FromChain(chain)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(id.Chain(), chain) &&
				id.Depth() == len(chain) &&
				id.String() == strings.Join(chain, Separator) &&
				id.Root().Value == chain[0]
		},
		genChain(),
	))

	properties.TestingRun(t)
}
