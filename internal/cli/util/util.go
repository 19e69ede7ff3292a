/*
Copyright (C) 2022-2023 ApeCloud Co., Ltd

This file is part of OpTest project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package util

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
	cmdget "k8s.io/kubectl/pkg/cmd/get"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"

	"github.com/apecloud/optest/internal/cli/types"
)

// CheckErr prints a friendly error to stderr and exits with a non-zero code.
func CheckErr(err error) {
	if err == nil {
		return
	}
	if err == cmdutil.ErrExit {
		os.Exit(cmdutil.DefaultErrorExitCode)
	}
	msg, ok := cmdutil.StandardErrorMessage(err)
	if !ok {
		msg = err.Error()
		if !strings.HasPrefix(msg, "error: ") {
			msg = fmt.Sprintf("error: %s", msg)
		}
	}
	fatal(msg, cmdutil.DefaultErrorExitCode)
}

func fatal(msg string, code int) {
	if len(msg) > 0 {
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		fmt.Fprint(os.Stderr, msg)
	}
	os.Exit(code)
}

// GetCliHomeDir returns the optest home dir, creating it on first use.
func GetCliHomeDir() (string, error) {
	var cliHome string
	if custom := os.Getenv(types.CliHomeEnv); custom != "" {
		cliHome = custom
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		cliHome = filepath.Join(home, types.CliDefaultHome)
	}
	if _, err := os.Stat(cliHome); err != nil && os.IsNotExist(err) {
		if err = os.MkdirAll(cliHome, os.ModePerm); err != nil {
			return "", errors.Wrap(err, "error when create optest home directory")
		}
	}
	return cliHome, nil
}

// ParseGVRs parses RESOURCE.VERSION.GROUP arguments, the fully qualified form
// kubectl accepts for resources.
func ParseGVRs(args []string) ([]schema.GroupVersionResource, error) {
	gvrs := make([]schema.GroupVersionResource, 0, len(args))
	for _, arg := range args {
		gvr, _ := schema.ParseResourceArg(strings.ToLower(arg))
		if gvr == nil {
			return nil, fmt.Errorf("invalid resource %q, expected RESOURCE.VERSION.GROUP", arg)
		}
		gvrs = append(gvrs, *gvr)
	}
	return gvrs, nil
}

// NewConfigFlagNoWarnings returns config flags that suppress api server
// warnings, the harness output stays readable that way.
func NewConfigFlagNoWarnings() *genericclioptions.ConfigFlags {
	configFlags := genericclioptions.NewConfigFlags(true)
	configFlags.WrapConfigFn = func(c *rest.Config) *rest.Config {
		c.WarningHandler = rest.NoWarnings{}
		return c
	}
	return configFlags
}

// AddKlogFlags adds flags from k8s.io/klog, normalizing the underscore names
// to dashes.
func AddKlogFlags(fs *pflag.FlagSet) {
	local := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(local)
	local.VisitAll(func(fl *flag.Flag) {
		fl.Name = strings.ReplaceAll(fl.Name, "_", "-")
		fs.AddGoFlag(fl)
	})
}

// SortEventsByLastTimestamp filters events by type and sorts them by last
// timestamp, oldest first. An empty eventType keeps every event.
func SortEventsByLastTimestamp(events *corev1.EventList, eventType string) []*corev1.Event {
	objs := make([]apiruntime.Object, 0, len(events.Items))
	for i, e := range events.Items {
		if eventType != "" && e.Type != eventType {
			continue
		}
		objs = append(objs, &events.Items[i])
	}
	sort.Sort(cmdget.NewRuntimeSort("{.lastTimestamp}", objs))

	sorted := make([]*corev1.Event, 0, len(objs))
	for _, o := range objs {
		sorted = append(sorted, o.(*corev1.Event))
	}
	return sorted
}

func GetEventTimeStr(e *corev1.Event) string {
	t := &e.CreationTimestamp
	if !e.LastTimestamp.Time.IsZero() {
		t = &e.LastTimestamp
	}
	return TimeFormat(t)
}

func GetEventObject(e *corev1.Event) string {
	return fmt.Sprintf("%s/%s", e.InvolvedObject.Kind, e.InvolvedObject.Name)
}

// TimeFormat formats time to a human readable string with a minute precision.
func TimeFormat(t *metav1.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Time.Format("Jan 02,2006 15:04 UTC-0700")
}
