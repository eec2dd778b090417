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

package launcher

import (
	"errors"
	"sync"
	"syscall"

	"github.com/seatunnel/launcher/internal/process"
)

// fakeSpawner hands out increasing pids starting at next
type fakeSpawner struct {
	mu    sync.Mutex
	next  int
	err   error
	calls []process.SpawnOptions
}

func newFakeSpawner(first int) *fakeSpawner {
	return &fakeSpawner{next: first}
}

func (s *fakeSpawner) Spawn(opts process.SpawnOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return 0, s.err
	}
	pid := s.next
	s.next++
	return pid, nil
}

func (s *fakeSpawner) spawned() []process.SpawnOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]process.SpawnOptions(nil), s.calls...)
}

// killCall records one KillTree invocation
type killCall struct {
	pid      int
	sig      syscall.Signal
	groups   bool
	sessions bool
}

type fakeKiller struct {
	mu    sync.Mutex
	err   error
	calls []killCall
}

func (k *fakeKiller) KillTree(pid int, sig syscall.Signal, groups, sessions bool) ([]process.Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, killCall{pid: pid, sig: sig, groups: groups, sessions: sessions})
	if k.err != nil {
		return nil, k.err
	}
	return []process.Process{{PID: pid, PGID: pid, SID: pid}}, nil
}

func (k *fakeKiller) killed() []killCall {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]killCall(nil), k.calls...)
}

// fakeReaper resolves exit-waits only when the test says so
type fakeReaper struct {
	mu    sync.Mutex
	waits map[int]chan process.ExitResult
}

func newFakeReaper() *fakeReaper {
	return &fakeReaper{waits: make(map[int]chan process.ExitResult)}
}

func (r *fakeReaper) channel(pid int) chan process.ExitResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.waits[pid]
	if !ok {
		ch = make(chan process.ExitResult, 1)
		r.waits[pid] = ch
	}
	return ch
}

func (r *fakeReaper) Reap(pid int) <-chan process.ExitResult {
	return r.channel(pid)
}

func (r *fakeReaper) exit(pid, status int) {
	ch := r.channel(pid)
	ch <- process.ExitResult{Status: &status}
	close(ch)
}

func (r *fakeReaper) gone(pid int) {
	ch := r.channel(pid)
	ch <- process.ExitResult{}
	close(ch)
}

func (r *fakeReaper) fail(pid int, err error) {
	ch := r.channel(pid)
	ch <- process.ExitResult{Err: err}
	close(ch)
}

// fakeLifetime is a lifetime extender with a fixed detection result
type fakeLifetime struct {
	enabled bool
}

func (f fakeLifetime) Enabled() bool { return f.enabled }

func (f fakeLifetime) Hook() process.Hook {
	return process.Hook{Name: "extend-lifetime", Run: func(int) error { return nil }}
}

// fakeRecorder counts outcomes
type fakeRecorder struct {
	mu        sync.Mutex
	forks     int
	forkErrs  int
	destroys  int
	recovered int
	tracked   int
}

func (r *fakeRecorder) ForkCompleted(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forks++
	if err != nil {
		r.forkErrs++
	}
}

func (r *fakeRecorder) DestroyCompleted(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroys++
}

func (r *fakeRecorder) RecoverCompleted(count int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.recovered += count
	}
}

func (r *fakeRecorder) SetTracked(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = n
}

// recorderCounts is a point-in-time copy of a fakeRecorder
type recorderCounts struct {
	forks, forkErrs, destroys, recovered, tracked int
}

func (r *fakeRecorder) snapshot() recorderCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorderCounts{forks: r.forks, forkErrs: r.forkErrs, destroys: r.destroys, recovered: r.recovered, tracked: r.tracked}
}

var errBoom = errors.New("boom")

// harness bundles a launcher with its fakes
type harness struct {
	launcher *PosixLauncher
	spawner  *fakeSpawner
	killer   *fakeKiller
	reaper   *fakeReaper
	recorder *fakeRecorder
}

func newHarness(lifetime bool) *harness {
	h := &harness{
		spawner:  newFakeSpawner(4000),
		killer:   &fakeKiller{},
		reaper:   newFakeReaper(),
		recorder: &fakeRecorder{},
	}
	h.launcher = NewPosixLauncher("/var/run/launcher", Options{
		Spawner:  h.spawner,
		Killer:   h.killer,
		Reaper:   h.reaper,
		Lifetime: fakeLifetime{enabled: lifetime},
		Recorder: h.recorder,
	})
	return h
}
