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
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"k8s.io/shmfutex/pkg/version"
)

var shortVersion bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of shmfutex",
	Long:  `Print the version of shmfutex.`,
	Args:  cobra.NoArgs,
	RunE: func(command *cobra.Command, args []string) error {
		shmfutexVersion := version.GetVersion()
		gitCommitID := version.GetGitCommitID()
		data := map[string]string{
			"shmfutexVersion": shmfutexVersion,
			"commit":          gitCommitID,
		}
		if sv, err := version.GetSemverVersion(); err != nil {
			klog.Warningf("version %q is not a semantic version: %v", shmfutexVersion, err)
		} else {
			data["semver"] = sv.String()
			data["major"] = strconv.FormatUint(sv.Major, 10)
			data["minor"] = strconv.FormatUint(sv.Minor, 10)
			data["patch"] = strconv.FormatUint(sv.Patch, 10)
		}
		out := command.OutOrStdout()
		switch viper.GetString(flagOutput) {
		case "", "table":
			fmt.Fprintf(out, "shmfutex version: %v\n", shmfutexVersion)
			if !shortVersion && gitCommitID != "" {
				fmt.Fprintf(out, "commit: %v\n", gitCommitID)
			}
		case "json":
			json, err := json.Marshal(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(json))
		case "yaml":
			yaml, err := yaml.Marshal(data)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(yaml))
		default:
			return usagef("error: --output must be 'yaml' or 'json'")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&shortVersion, "short", false, "Print just the version number.")
}
