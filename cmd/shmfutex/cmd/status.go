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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/futex"
	"k8s.io/shmfutex/pkg/util/process"
)

// Status describes a segment and the lock in it.
type Status struct {
	Segment     string `json:"segment" yaml:"segment"`
	Path        string `json:"path" yaml:"path"`
	Size        int    `json:"size" yaml:"size"`
	Value       uint32 `json:"value" yaml:"value"`
	State       string `json:"state" yaml:"state"`
	HolderPID   int    `json:"holderPID,omitempty" yaml:"holderPID,omitempty"`
	HolderAlive *bool  `json:"holderAlive,omitempty" yaml:"holderAlive,omitempty"`
	Counter     uint64 `json:"counter" yaml:"counter"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lock word and its recorded holder",
	Long: `Show the raw lock word, the state it encodes, the pid recorded by the last holder and
whether that process is still running. A held lock whose holder is gone stays held: nothing
recovers it automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seg, m, err := openSegment()
		if err != nil {
			return err
		}
		defer seg.Close()

		st := Status{
			Segment: seg.Name(),
			Path:    seg.Path(),
			Size:    seg.Size(),
			Value:   m.Value(),
			Counter: atomic.LoadUint64(seg.Counter()),
		}
		st.State = futex.State(st.Value).String()
		if pid, ok := seg.Holder(); ok {
			st.HolderPID = pid
			alive, err := process.Exists(pid)
			if err != nil {
				klog.Warningf("checking holder %d: %v", pid, err)
			} else {
				st.HolderAlive = &alive
			}
		}
		return printStatus(cmd.OutOrStdout(), viper.GetString(flagOutput), st)
	},
}

func printStatus(w io.Writer, format string, st Status) error {
	switch format {
	case "", "table":
		holder, alive := "-", "-"
		if st.HolderPID != 0 {
			holder = strconv.Itoa(st.HolderPID)
		}
		if st.HolderAlive != nil {
			alive = strconv.FormatBool(*st.HolderAlive)
		}
		return renderTable(w, []string{"Segment", "Value", "State", "Holder", "Holder Alive", "Counter"}, [][]string{{
			st.Segment, strconv.FormatUint(uint64(st.Value), 10), st.State, holder, alive, strconv.FormatUint(st.Counter, 10),
		}})
	case "json":
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
		return nil
	case "yaml":
		b, err := yaml.Marshal(st)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(b))
		return nil
	default:
		return usagef("--output must be 'table', 'json' or 'yaml', got %q", format)
	}
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	table.Header(hdr...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
