/*
Copyright ApeCloud Inc.

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

package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/kubectl/pkg/util/templates"
	"sigs.k8s.io/yaml"

	"github.com/apecloud/optest/internal/cli/printer"
	"github.com/apecloud/optest/internal/cli/util"
	"github.com/apecloud/optest/internal/cli/util/prompt"
	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/cleanup"
	"github.com/apecloud/optest/pkg/kube"
)

var cleanupExample = templates.Examples(`
	# Show what a finished test run left behind in two namespaces
	optest cleanup ns-abcd1 ns-abcd2 --dry-run

	# Clean up the current namespace along with the operator's custom resources
	optest cleanup --custom-resource things.v1alpha1.test.optest.apecloud.io

	# Clean up a namespace and the operator's cluster-scoped RBAC without prompting
	optest cleanup ns-abcd1 --operator-selector release=fake-operator --auto-approve`)

type options struct {
	genericclioptions.IOStreams

	namespaces       []string
	customResources  []string
	operatorSelector string
	instanceLabel    string
	deleteNamespaces bool
	dryRun           bool
	autoApprove      bool
	timeout          time.Duration
	output           printer.Format

	client *kube.Client
	gvrs   []schema.GroupVersionResource
	policy checks.Policy
}

// NewCleanupCmd creates the cleanup command.
func NewCleanupCmd(f cmdutil.Factory, streams genericclioptions.IOStreams) *cobra.Command {
	o := &options{IOStreams: streams}
	cmd := &cobra.Command{
		Use:     "cleanup [NAMESPACE ...]",
		Short:   "Delete test artifacts from namespaces and verify nothing remains",
		Example: cleanupExample,
		Args:    cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			util.CheckErr(o.complete(f, args))
			util.CheckErr(o.validate())
			util.CheckErr(o.run())
		},
	}

	cmd.Flags().StringArrayVar(&o.customResources, "custom-resource", nil, "Custom resource to purge before anything else, as RESOURCE.VERSION.GROUP, may be repeated")
	cmd.Flags().StringVar(&o.operatorSelector, "operator-selector", "", "Label selector of the cluster roles and bindings installed by the operator under test")
	cmd.Flags().StringVar(&o.instanceLabel, "instance-label", kube.InstanceLabelKey, "Label key that ties persistent volumes to the namespace's claims")
	cmd.Flags().BoolVar(&o.deleteNamespaces, "delete-namespaces", true, "Delete the namespaces themselves after their content")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Only print the artifacts that would be deleted")
	cmd.Flags().BoolVar(&o.autoApprove, "auto-approve", false, "Skip interactive approval before deleting")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 3*time.Minute, "Time to wait for the cluster to converge to empty")
	printer.AddOutputFlag(cmd, &o.output)
	return cmd
}

func (o *options) complete(f cmdutil.Factory, args []string) error {
	var err error

	o.namespaces = args
	if len(o.namespaces) == 0 {
		namespace, _, err := f.ToRawKubeConfigLoader().Namespace()
		if err != nil {
			return err
		}
		o.namespaces = []string{namespace}
	}

	if o.gvrs, err = util.ParseGVRs(o.customResources); err != nil {
		return err
	}

	o.policy = checks.DefaultPolicy()
	if o.timeout > 0 {
		o.policy.Timeout = o.timeout
	}

	config, err := f.ToRESTConfig()
	if err != nil {
		return err
	}
	clientSet, err := f.KubernetesClientSet()
	if err != nil {
		return err
	}
	dynamicClient, err := f.DynamicClient()
	if err != nil {
		return err
	}
	o.client = &kube.Client{
		Config:    config,
		ClientSet: clientSet,
		Dynamic:   dynamicClient,
	}
	return nil
}

func (o *options) validate() error {
	for _, namespace := range o.namespaces {
		if namespace == "" {
			return fmt.Errorf("namespace name must not be empty")
		}
	}
	return nil
}

func (o *options) run() error {
	cleaner := cleanup.New(o.client, klog.Background(), cleanup.Options{
		Namespaces:       o.namespaces,
		CustomResources:  o.gvrs,
		InstanceLabelKey: o.instanceLabel,
		OperatorSelector: o.operatorSelector,
		DeleteNamespaces: o.deleteNamespaces,
		Policy:           o.policy,
	})

	if o.dryRun {
		return o.printArtifacts(cleaner)
	}

	if !o.autoApprove {
		if err := o.confirm(); err != nil {
			return err
		}
	}

	ctx := context.Background()
	printErr := func(spinner func(result bool), err error) {
		if err == nil {
			spinner(true)
			return
		}
		spinner(false)
		fmt.Fprintf(o.Out, "  %s\n", err.Error())
	}

	// delete failures are tolerated, the verification decides the outcome
	spinner := printer.Spinner(o.Out, "%-50s", "Delete artifacts in "+strings.Join(o.namespaces, ","))
	printErr(spinner, cleaner.DeleteArtifacts(ctx))

	spinner = printer.Spinner(o.Out, "%-50s", "Wait for all artifacts to be gone")
	if err := cleaner.WaitUntilGone(ctx); err != nil {
		spinner(false)
		return err
	}
	spinner(true)

	fmt.Fprintln(o.Out, "Cleanup done.")
	return nil
}

func (o *options) confirm() error {
	fmt.Fprintf(o.Out, "%s this will delete everything in namespaces %s. This action cannot be undone.\n",
		printer.BoldYellow("Warning:"), strings.Join(o.namespaces, ","))
	const confirmStr = "cleanup"
	_, err := prompt.NewPrompt(fmt.Sprintf("Please type \"%s\" to confirm:", confirmStr),
		func(input string) error {
			if input != confirmStr {
				return fmt.Errorf("typed \"%s\" does not match \"%s\"", input, confirmStr)
			}
			return nil
		}, o.In).Run()
	return err
}

func (o *options) printArtifacts(cleaner *cleanup.Cleaner) error {
	artifacts, err := cleaner.ListArtifacts(context.Background())
	if err != nil {
		fmt.Fprintf(o.ErrOut, "some artifacts could not be listed: %s\n", err.Error())
	}

	switch o.output {
	case printer.JSON:
		data, err := json.MarshalIndent(artifacts.Summary(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(o.Out, string(data))
	case printer.YAML:
		data, err := yaml.Marshal(artifacts.Summary())
		if err != nil {
			return err
		}
		fmt.Fprint(o.Out, string(data))
	default:
		o.printArtifactTable(artifacts)
	}
	return nil
}

func (o *options) printArtifactTable(artifacts cleanup.Artifacts) {
	if artifacts.Empty() {
		fmt.Fprintln(o.Out, "No artifacts found.")
		return
	}
	tbl := printer.NewTablePrinter(o.Out)
	wide := o.output == printer.Wide
	if wide {
		tbl.SetHeader("RESOURCE", "GROUP", "NAMESPACE", "NAME", "CREATED-TIME")
	} else {
		tbl.SetHeader("RESOURCE", "NAMESPACE", "NAME")
	}
	tbl.SortBy(1)
	for gvr, list := range artifacts {
		for i := range list.Items {
			item := &list.Items[i]
			if wide {
				creation := item.GetCreationTimestamp()
				tbl.AddRow(gvr.Resource, gvr.Group, item.GetNamespace(), item.GetName(), util.TimeFormat(&creation))
			} else {
				tbl.AddRow(gvr.Resource, item.GetNamespace(), item.GetName())
			}
		}
	}
	tbl.Print()
}
