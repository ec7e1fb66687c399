// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/grailbio/base/errors"
)

// ExecutionStrategy decides what a worker body runs on.
type ExecutionStrategy interface {
	// Launch starts body and sends its exit status to exit once it
	// returns. A panic in body is reported as an error status.
	Launch(body func() error, exit chan<- error)
	Name() string
}

type goroutines struct{}

func (goroutines) Name() string { return "goroutines" }

func (goroutines) Launch(body func() error, exit chan<- error) {
	go func() { exit <- protect(body) }()
}

// osThreads pins every worker to its own OS thread for its lifetime.
// Workers share the address space either way.
type osThreads struct{}

func (osThreads) Name() string { return "threads" }

func (osThreads) Launch(body func() error, exit chan<- error) {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		exit <- protect(body)
	}()
}

var (
	// Goroutines runs workers as ordinary goroutines.
	Goroutines ExecutionStrategy = goroutines{}
	// OSThreads runs each worker on a dedicated OS thread.
	OSThreads ExecutionStrategy = osThreads{}
)

// ParseExecution returns the strategy with the given name, "goroutines" or
// "threads".
func ParseExecution(name string) (ExecutionStrategy, error) {
	for _, s := range []ExecutionStrategy{Goroutines, OSThreads} {
		if strings.EqualFold(s.Name(), name) {
			return s, nil
		}
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("unknown execution strategy %q, want goroutines or threads", name))
}

func protect(body func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.E(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	return body()
}
