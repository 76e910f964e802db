// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"runtime/debug"
)

// HandlePanic logs a panic happening in the goroutine it is deferred in.
// The panic is not re-raised; background goroutines must not take the
// process down with them.
func HandlePanic() {
	if msg := recover(); msg != nil {
		Root().Error("Panic in goroutine", "msg", msg,
			"stacktrace", string(debug.Stack()))
	}
}
