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
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/shm"
)

var (
	stressWorkers    int
	stressIterations int
)

// StressResult summarizes a stress run.
type StressResult struct {
	RunID      string        `json:"runID" yaml:"runID"`
	Workers    int           `json:"workers" yaml:"workers"`
	Iterations int           `json:"iterations" yaml:"iterations"`
	Expected   uint64        `json:"expected" yaml:"expected"`
	Observed   uint64        `json:"observed" yaml:"observed"`
	Elapsed    time.Duration `json:"elapsedNanoseconds" yaml:"elapsedNanoseconds"`
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer the lock and check that no increment of the shared counter is lost",
	Long: `Run --workers goroutines that each take the lock, increment the counter stored in the
segment and release the lock --iterations times. Run it from several processes at once to
exercise the lock across process boundaries.

The lost-update check compares how far the counter advanced with the increments of this run.
It is exact only while a single process uses the segment: concurrent runs elsewhere add their
own increments and can hide updates lost here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if stressWorkers <= 0 || stressIterations <= 0 {
			return usagef("--workers and --iterations must be positive")
		}
		seg, err := shm.Open(segmentName(), segmentOptions()...)
		if err != nil {
			return err
		}
		defer seg.Close()

		res, err := runStress(seg, stressWorkers, stressIterations, wakeCount())
		if err != nil {
			return err
		}
		if err := printStressResult(cmd.OutOrStdout(), viper.GetString(flagOutput), res); err != nil {
			return err
		}
		if res.Observed < res.Expected {
			return errors.Errorf("lost updates: counter advanced by %d, want at least %d", res.Observed, res.Expected)
		}
		return nil
	},
}

// runStress runs workers goroutines of iterations lock/increment/unlock
// cycles against seg.
func runStress(seg *shm.Segment, workers, iterations int, wake uint32) (StressResult, error) {
	res := StressResult{
		RunID:      uuid.New().String(),
		Workers:    workers,
		Iterations: iterations,
		Expected:   uint64(workers) * uint64(iterations),
	}
	counter := seg.Counter()
	before := atomic.LoadUint64(counter)
	klog.Infof("stress run %s: %d workers x %d iterations on %s", res.RunID, workers, iterations, seg.Path())

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			m := seg.Mutex()
			for j := 0; j < iterations; j++ {
				m.Lock()
				*counter++
				m.Unlock(wake)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	res.Observed = atomic.LoadUint64(counter) - before
	if res.Observed > res.Expected {
		klog.Warningf("counter advanced by %d, more than the %d increments of this run: other processes are using %s", res.Observed, res.Expected, seg.Path())
	}
	return res, nil
}

func printStressResult(w io.Writer, format string, res StressResult) error {
	switch format {
	case "", "table":
		rate := "-"
		if res.Elapsed > 0 {
			rate = fmt.Sprintf("%.0f", float64(res.Expected)/res.Elapsed.Seconds())
		}
		return renderTable(w, []string{"Run", "Workers", "Iterations", "Expected", "Observed", "Elapsed", "Cycles/s"}, [][]string{{
			res.RunID,
			strconv.Itoa(res.Workers),
			strconv.Itoa(res.Iterations),
			strconv.FormatUint(res.Expected, 10),
			strconv.FormatUint(res.Observed, 10),
			res.Elapsed.Round(time.Millisecond).String(),
			rate,
		}})
	case "json":
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
		return nil
	case "yaml":
		b, err := yaml.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(b))
		return nil
	default:
		return usagef("--output must be 'table', 'json' or 'yaml', got %q", format)
	}
}

func init() {
	stressCmd.Flags().IntVar(&stressWorkers, "workers", 2, "Number of concurrent workers")
	stressCmd.Flags().IntVar(&stressIterations, "iterations", 10000, "Lock/increment/unlock cycles per worker")
}
