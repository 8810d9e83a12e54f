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
	"fmt"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"k8s.io/shmfutex/pkg/futex"
)

var (
	postValue   uint32
	waitTimeout time.Duration
)

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, usagef("invalid lock word value %q: %v", s, err)
	}
	return uint32(v), nil
}

var setCmd = &cobra.Command{
	Use:   "set VALUE",
	Short: "Store a raw value into the lock word without waking anyone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseWord(args[0])
		if err != nil {
			return err
		}
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		m.SetValue(v)
		fmt.Fprintf(cmd.OutOrStdout(), "lock word set to %d (%s)\n", v, futex.State(v))
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Wake threads waiting on the lock word",
	Long: `Wake up to --wake threads blocked on the lock word. With --value the word is stored
first; the store is visible to other processes before the wake is issued.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		var n int
		if cmd.Flags().Changed("value") {
			n, err = m.PostWithValue(postValue, wakeCount())
		} else {
			n, err = m.Post(wakeCount())
		}
		if err != nil {
			return errors.Wrapf(err, "futex wake failed with status %d", futex.Errno(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "woke %d waiter(s)\n", n)
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait EXPECTED",
	Short: "Sleep while the lock word equals EXPECTED",
	Long: `Sleep in the kernel while the lock word equals EXPECTED, for at most --timeout when
given. The kernel status is printed: 0 after a wake (which may be spurious), a negative errno
when the word did not match (EAGAIN), the wait timed out (ETIMEDOUT) or was interrupted (EINTR).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expected, err := parseWord(args[0])
		if err != nil {
			return err
		}
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		if waitTimeout > 0 {
			err = m.WaitWithTimeout(expected, waitTimeout)
		} else {
			err = m.Wait(expected)
		}
		var errno syscall.Errno
		if err != nil && !errors.As(err, &errno) {
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "status %d (%v), lock word is %d\n", futex.Errno(err), err, m.Value())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status 0, lock word is %d\n", m.Value())
		return nil
	},
}

func init() {
	postCmd.Flags().Uint32Var(&postValue, "value", 0, "Store this value into the lock word before waking")
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "Give up after this long (0 waits without a deadline)")
}
