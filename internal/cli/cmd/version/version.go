/*
Copyright ApeCloud, Inc.

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

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"

	"github.com/apecloud/optest/internal/cli/util"
	"github.com/apecloud/optest/version"
)

type versionOptions struct {
	client  kubernetes.Interface
	verbose bool
}

// NewVersionCmd the version command
func NewVersionCmd(f cmdutil.Factory) *cobra.Command {
	o := &versionOptions{}
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information, include kubernetes and optest version.",
		Run: func(cmd *cobra.Command, args []string) {
			util.CheckErr(o.Complete(f))
			o.Run()
		},
	}
	cmd.Flags().BoolVar(&o.verbose, "verbose", false, "print detailed optest information")
	return cmd
}

// Complete loads the clientset. An unreachable cluster only mutes the server
// part of the output.
func (o *versionOptions) Complete(f cmdutil.Factory) error {
	var err error
	o.client, err = f.KubernetesClientSet()
	if err != nil {
		klog.V(1).Infof("failed to get clientset: %v", err)
	}
	return nil
}

func (o *versionOptions) Run() {
	if o.client != nil {
		serverVersion, err := o.client.Discovery().ServerVersion()
		if err == nil && len(serverVersion.GitVersion) > 0 {
			provider := ""
			if p, err := util.GetK8sProvider(serverVersion.GitVersion, o.client); err == nil && p.IsCloud() {
				provider = fmt.Sprintf(" (%s)", p)
			}
			fmt.Printf("Kubernetes: %s%s\n", serverVersion.GitVersion, provider)
		} else if err != nil {
			klog.V(1).Infof("failed to get server version: %v", err)
		}
	}
	fmt.Printf("optest: %s\n", version.GetVersion())
	if o.verbose {
		fmt.Printf("  BuildDate: %s\n", version.BuildDate)
		fmt.Printf("  GitCommit: %s\n", version.GitCommit)
		fmt.Printf("  GitTag: %s\n", version.GitVersion)
		fmt.Printf("  GoVersion: %s\n", runtime.Version())
		fmt.Printf("  Compiler: %s\n", runtime.Compiler)
		fmt.Printf("  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	}
}
