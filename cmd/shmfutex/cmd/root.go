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
	goflag "flag"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/futex"
	"k8s.io/shmfutex/pkg/shm"
)

const (
	flagName   = "name"
	flagDir    = "dir"
	flagOutput = "output"
	flagWake   = "wake"

	defaultSegmentName = "shmfutex"
)

var cfgFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "shmfutex",
	Short: "shmfutex drives futex locks that live in shared memory.",
	Long: `shmfutex creates shared memory segments holding a futex lock word, takes and releases
the lock from the command line, and reports who holds it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func init() {
	klog.InitFlags(nil)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shmfutex.yaml)")
	RootCmd.PersistentFlags().String(flagName, defaultSegmentName, "Name of the shared memory segment")
	RootCmd.PersistentFlags().String(flagDir, shm.DefaultDir, "Directory holding shared memory segments")
	RootCmd.PersistentFlags().StringP(flagOutput, "o", "table", "Output format. One of: table, json, yaml")
	RootCmd.PersistentFlags().Uint32(flagWake, 1, "Number of waiters to wake when releasing a contended lock")
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		klog.Exitf("unable to bind flags: %v", err)
	}
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	RootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	RootCmd.AddCommand(
		createCmd,
		removeCmd,
		lockCmd,
		trylockCmd,
		unlockCmd,
		statusCmd,
		setCmd,
		postCmd,
		waitCmd,
		stressCmd,
		versionCmd,
	)
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("shmfutex")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			klog.V(2).Infof("no home directory, skipping config file: %v", err)
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".shmfutex")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			klog.Warningf("reading config: %v", err)
		}
		return
	}
	klog.Infof("using config file %s", viper.ConfigFileUsed())
}

func segmentName() string {
	return viper.GetString(flagName)
}

func segmentOptions(extra ...shm.Option) []shm.Option {
	return append([]shm.Option{shm.WithDir(viper.GetString(flagDir))}, extra...)
}

func wakeCount() uint32 {
	return viper.GetUint32(flagWake)
}

// openSegment maps the configured segment and returns it with a handle on
// its lock word. The caller closes the segment.
func openSegment() (*shm.Segment, *futex.Mutex, error) {
	seg, err := shm.Open(segmentName(), segmentOptions()...)
	if err != nil {
		return nil, nil, err
	}
	return seg, seg.Mutex(), nil
}
