/*
Copyright 2025 The Kubernetes Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package process reports whether the process recorded as a lock holder is
// still around, and writes pidfiles for scripts that wrap a hold.
package process

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"k8s.io/klog/v2"
)

const pidfileMode = 0o600

// WritePidfile writes pid to path.
func WritePidfile(path string, pid int) error {
	data := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(path, []byte(data), pidfileMode); err != nil {
		return errors.Wrapf(err, "write pidfile %s", path)
	}
	return nil
}

// Exists tells if a process with pid is running. Zombies count as gone: a
// holder that exited but was not reaped can no longer release a lock.
func Exists(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	// Fast path if pid does not exist.
	exists, err := pidExists(pid)
	if err != nil {
		return true, err
	}
	if !exists {
		return false, nil
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		klog.Warningf("process.NewProcess(%d) failed: %v", pid, err)
		return true, err
	}
	status, err := proc.Status()
	if err != nil {
		// It might have exited between the two probes.
		klog.Warningf("proc.Status() failed for pid %d: %v", pid, err)
		return false, nil
	}
	for _, s := range status {
		if s == process.Zombie {
			return false, nil
		}
	}
	return true, nil
}
