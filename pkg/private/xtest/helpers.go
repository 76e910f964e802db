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

// Package xtest contains common support functionality for unit tests.
package xtest

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// AssertReadReturnsBefore will call t.Fatalf if the first read from the
// channel doesn't occur before timeout.
func AssertReadReturnsBefore(t testing.TB, ch <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("goroutine took too long to finish")
	}
}

// TempFileName creates a temporary file in dir with the specified prefix,
// closes and deletes it, and returns its name. Useful for testing packages
// that need a unique path they can create themselves (e.g. databases).
func TempFileName(t *testing.T, prefix string) string {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), prefix)
	require.NoError(t, err)
	name := file.Name()
	require.NoError(t, file.Close())
	require.NoError(t, os.Remove(name))
	return name
}
