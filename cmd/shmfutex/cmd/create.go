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
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"k8s.io/shmfutex/pkg/shm"
)

var (
	createSize = newUnitValue(shm.DefaultSize)
	createMode string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a shared memory segment holding an unlocked lock word",
	Long: `Create the segment if it does not exist, size it and seed its lock word to unlocked.
An existing segment is opened and left as it is.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if *createSize <= 0 {
			return usagef("--size must be positive, got %s", createSize)
		}
		mode, err := strconv.ParseUint(createMode, 8, 32)
		if err != nil {
			return usagef("--mode must be octal, got %q", createMode)
		}
		seg, err := shm.Create(segmentName(), segmentOptions(
			shm.WithSize(int(*createSize)),
			shm.WithMode(os.FileMode(mode)),
		)...)
		if err != nil {
			return err
		}
		defer seg.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "segment %s ready (%d bytes, lock %s)\n", seg.Path(), seg.Size(), seg.Mutex().State())
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Unlink a shared memory segment",
	Long:  `Unlink the segment. Processes that still map it keep using their mapping.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := shm.Remove(segmentName(), segmentOptions()...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "segment %q removed\n", segmentName())
		return nil
	},
}

func init() {
	createCmd.Flags().Var(createSize, "size", "Size of the segment, e.g. 4KiB")
	createCmd.Flags().StringVar(&createMode, "mode", fmt.Sprintf("%04o", uint32(shm.DefaultMode)), "Permission bits of the segment file, in octal")
}
