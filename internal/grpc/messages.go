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

package grpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// ForkParams are the fields of a Fork request
// ForkParams 是 Fork 请求的字段
type ForkParams struct {
	// ContainerID is optional, a uuid is generated when empty
	// ContainerID 可选，为空时生成 uuid
	ContainerID string
	Path        string
	Argv        []string

	// Stdin, Stdout and Stderr are "null", "inherit" or a file path
	Stdin  string
	Stdout string
	Stderr string

	Flags       map[string]string
	Environment map[string]string
	Namespaces  int
}

// ContainerInfo describes a tracked container
// ContainerInfo 描述一个被跟踪的容器
type ContainerInfo struct {
	ContainerID string
	PID         int
}

// DestroyResult describes the outcome of a Destroy call. Completed is false
// when the call did not wait for the process to be reaped.
// DestroyResult 描述 Destroy 调用的结果。未等待回收时 Completed 为 false。
type DestroyResult struct {
	ContainerID string
	Completed   bool
	ExitStatus  *int
}

func (p ForkParams) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"container_id": p.ContainerID,
		"path":         p.Path,
		"stdin":        p.Stdin,
		"stdout":       p.Stdout,
		"stderr":       p.Stderr,
		"namespaces":   p.Namespaces,
	}
	if p.Argv != nil {
		argv := make([]any, len(p.Argv))
		for i, a := range p.Argv {
			argv[i] = a
		}
		fields["argv"] = argv
	}
	if p.Flags != nil {
		fields["flags"] = stringMapToAny(p.Flags)
	}
	if p.Environment != nil {
		fields["environment"] = stringMapToAny(p.Environment)
	}
	return structpb.NewStruct(fields)
}

func forkParamsFromStruct(s *structpb.Struct) (ForkParams, error) {
	fields := s.GetFields()

	var (
		p   ForkParams
		err error
	)
	if p.ContainerID, err = stringField(fields, "container_id"); err != nil {
		return p, err
	}
	if p.Path, err = stringField(fields, "path"); err != nil {
		return p, err
	}
	if p.Path == "" {
		return p, fmt.Errorf("path is required")
	}
	if p.Argv, err = stringListField(fields, "argv"); err != nil {
		return p, err
	}
	if p.Stdin, err = stringField(fields, "stdin"); err != nil {
		return p, err
	}
	if p.Stdout, err = stringField(fields, "stdout"); err != nil {
		return p, err
	}
	if p.Stderr, err = stringField(fields, "stderr"); err != nil {
		return p, err
	}
	if p.Flags, err = stringMapField(fields, "flags"); err != nil {
		return p, err
	}
	if p.Environment, err = stringMapField(fields, "environment"); err != nil {
		return p, err
	}
	if p.Namespaces, err = intField(fields, "namespaces"); err != nil {
		return p, err
	}
	return p, nil
}

func (c ContainerInfo) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(c.toMap())
}

func (c ContainerInfo) toMap() map[string]any {
	return map[string]any{"container_id": c.ContainerID, "pid": c.PID}
}

func containerInfoFromFields(fields map[string]*structpb.Value) (ContainerInfo, error) {
	var (
		c   ContainerInfo
		err error
	)
	if c.ContainerID, err = stringField(fields, "container_id"); err != nil {
		return c, err
	}
	if c.PID, err = intField(fields, "pid"); err != nil {
		return c, err
	}
	return c, nil
}

func containerListToStruct(infos []ContainerInfo) (*structpb.Struct, error) {
	list := make([]any, len(infos))
	for i, info := range infos {
		list[i] = info.toMap()
	}
	return structpb.NewStruct(map[string]any{"containers": list})
}

func containerListFromStruct(s *structpb.Struct) ([]ContainerInfo, error) {
	v, ok := s.GetFields()["containers"]
	if !ok || isNull(v) {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("containers must be a list")
	}

	infos := make([]ContainerInfo, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		entry := item.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("containers must hold objects")
		}
		info, err := containerInfoFromFields(entry.GetFields())
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r DestroyResult) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"container_id": r.ContainerID,
		"completed":    r.Completed,
	}
	if r.ExitStatus != nil {
		fields["exit_status"] = *r.ExitStatus
	}
	return structpb.NewStruct(fields)
}

func destroyResultFromStruct(s *structpb.Struct) (DestroyResult, error) {
	fields := s.GetFields()

	var (
		r   DestroyResult
		err error
	)
	if r.ContainerID, err = stringField(fields, "container_id"); err != nil {
		return r, err
	}
	if r.Completed, err = boolField(fields, "completed"); err != nil {
		return r, err
	}
	if v, ok := fields["exit_status"]; ok && !isNull(v) {
		status, err := intField(fields, "exit_status")
		if err != nil {
			return r, err
		}
		r.ExitStatus = &status
	}
	return r, nil
}

// ==================== Field helpers 字段辅助函数 ====================

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return v == nil || v.GetKind() == nil || ok
}

func stringField(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return sv.StringValue, nil
}

func boolField(fields map[string]*structpb.Value, key string) (bool, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return false, nil
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return bv.BoolValue, nil
}

func intField(fields map[string]*structpb.Value, key string) (int, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return 0, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	n := nv.NumberValue
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a 32-bit integer", key)
	}
	return int(n), nil
}

func stringListField(fields map[string]*structpb.Value, key string) ([]string, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%s must be a list", key)
	}

	values := lv.ListValue.GetValues()
	out := make([]string, len(values))
	for i, item := range values {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		out[i] = sv.StringValue
	}
	return out, nil
}

func stringMapField(fields map[string]*structpb.Value, key string) (map[string]string, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", key)
	}

	out := make(map[string]string, len(sv.StructValue.GetFields()))
	for k, item := range sv.StructValue.GetFields() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%s.%s must be a string", key, k)
		}
		out[k] = s.StringValue
	}
	return out, nil
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
