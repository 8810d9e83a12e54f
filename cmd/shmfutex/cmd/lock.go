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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/futex"
	"k8s.io/shmfutex/pkg/shm"
	"k8s.io/shmfutex/pkg/util/process"
)

var errLockBusy = errors.New("lock is held by another process")

var (
	holdFor     time.Duration
	holdPidfile string
)

var lockCmd = &cobra.Command{
	Use:   "lock [-- COMMAND [ARGS...]]",
	Short: "Take the lock, hold it, then release it",
	Long: `Block until the lock is ours, record this process as the holder, then either run
COMMAND, hold for --hold, or hold until interrupted when neither is given. The lock is
released afterwards, waking --wake waiters if it was contended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		start := time.Now()
		m.Lock()
		klog.Infof("acquired %s after %s", seg.Path(), time.Since(start))
		return holdAndRelease(cmd, seg, m, args)
	},
}

var trylockCmd = &cobra.Command{
	Use:   "trylock [-- COMMAND [ARGS...]]",
	Short: "Take the lock only if it is free",
	Long:  `Like lock, but fail at once instead of waiting when the lock is held.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		if !m.TryLock() {
			return errLockBusy
		}
		return holdAndRelease(cmd, seg, m, args)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release the lock on behalf of its holder",
	Long: `Release the lock whoever holds it. This is an operator escape hatch for a holder that
died while holding the lock; releasing a lock that is not held corrupts the lock word.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		prev := m.State()
		if !prev.Held() {
			return errors.Errorf("refusing to unlock %s: lock word is %s", seg.Path(), prev)
		}
		seg.ClearHolder()
		m.Unlock(wakeCount())
		fmt.Fprintf(cmd.OutOrStdout(), "released lock (was %s)\n", prev)
		return nil
	},
}

// holdAndRelease keeps the lock for the requested time or command, then
// releases it.
func holdAndRelease(cmd *cobra.Command, seg *shm.Segment, m *futex.Mutex, args []string) error {
	seg.SetHolder(os.Getpid())
	defer func() {
		seg.ClearHolder()
		m.Unlock(wakeCount())
		klog.Infof("released %s", seg.Path())
	}()

	if holdPidfile != "" {
		if err := process.WritePidfile(holdPidfile, os.Getpid()); err != nil {
			return err
		}
		defer os.Remove(holdPidfile)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "holding lock %s\n", seg.Path())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		c := exec.CommandContext(ctx, args[0], args[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		if err := c.Run(); err != nil {
			return errors.Wrapf(err, "running %s under the lock", args[0])
		}
		return nil
	}
	if holdFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, holdFor)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}

func init() {
	for _, c := range []*cobra.Command{lockCmd, trylockCmd} {
		c.Flags().DurationVar(&holdFor, "hold", 0, "How long to hold the lock when no command is given (0 waits for an interrupt)")
		c.Flags().StringVar(&holdPidfile, "pidfile", "", "Write the holder pid to this file while the lock is held")
	}
}
