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

package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/apecloud/optest/internal/cli/printer"
	"github.com/apecloud/optest/internal/cli/util"
	"github.com/apecloud/optest/pkg/diagnostics"
	"github.com/apecloud/optest/pkg/kube"
)

var collectExample = templates.Examples(`
	# Dump everything a test run created in a namespace
	optest collect ns-abcd1

	# Dump two namespaces with the operator's custom resources included
	optest collect ns-abcd1 ns-abcd2 --custom-resource things.v1alpha1.test.optest.apecloud.io

	# Also archive the content of the claim-backed volumes
	optest collect ns-abcd1 --pv-archive`)

type options struct {
	genericclioptions.IOStreams

	namespaces      []string
	outputDir       string
	customResources []string
	instanceLabel   string
	pvArchive       bool
	archiveImage    string
	archiveTimeout  time.Duration

	client *kube.Client
	gvrs   []schema.GroupVersionResource
}

// NewCollectCmd creates the collect command.
func NewCollectCmd(f cmdutil.Factory, streams genericclioptions.IOStreams) *cobra.Command {
	o := &options{IOStreams: streams}
	cmd := &cobra.Command{
		Use:     "collect [NAMESPACE ...]",
		Short:   "Dump the state and logs of test namespaces for later debugging",
		Example: collectExample,
		Args:    cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			util.CheckErr(o.complete(f, args))
			util.CheckErr(o.validate())
			util.CheckErr(o.run())
		},
	}

	cmd.Flags().StringVar(&o.outputDir, "output-dir", diagnostics.DefaultDir, "Directory the dump files are written to")
	cmd.Flags().StringArrayVar(&o.customResources, "custom-resource", nil, "Custom resource to dump alongside the built-in kinds, as RESOURCE.VERSION.GROUP, may be repeated")
	cmd.Flags().StringVar(&o.instanceLabel, "instance-label", kube.InstanceLabelKey, "Label key that ties persistent volumes to the namespace's claims")
	cmd.Flags().BoolVar(&o.pvArchive, "pv-archive", false, "Copy the content of every claim-backed volume into a tar file")
	cmd.Flags().StringVar(&o.archiveImage, "archive-image", "busybox", "Image of the short-lived helper pod the volume copy runs in")
	cmd.Flags().DurationVar(&o.archiveTimeout, "archive-timeout", time.Minute, "Time bound for a single volume copy")
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
	if o.outputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	for _, namespace := range o.namespaces {
		if namespace == "" {
			return fmt.Errorf("namespace name must not be empty")
		}
	}
	return nil
}

// run collects every namespace in turn. Collection is best effort, a failing
// namespace is reported and the rest still gets dumped.
func (o *options) run() error {
	collector := diagnostics.New(o.client, klog.Background(), diagnostics.Options{
		Dir:              o.outputDir,
		CustomResources:  o.gvrs,
		InstanceLabelKey: o.instanceLabel,
		PVArchive:        o.pvArchive,
		ArchiveImage:     o.archiveImage,
		ArchiveTimeout:   metav1.Duration{Duration: o.archiveTimeout},
	})

	ctx := context.Background()
	for _, namespace := range o.namespaces {
		spinner := printer.Spinner(o.Out, "%-50s", "Collect diagnostics in "+namespace)
		if err := collector.CollectNamespace(ctx, namespace); err != nil {
			spinner(false)
			fmt.Fprintf(o.Out, "  %s\n", err.Error())
			continue
		}
		spinner(true)
	}

	o.printWarningEvents(ctx)

	fmt.Fprintf(o.Out, "Diagnostics written to %s\n", o.outputDir)
	return nil
}

func (o *options) printWarningEvents(ctx context.Context) {
	for _, namespace := range o.namespaces {
		events, err := o.client.ClientSet.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			fmt.Fprintf(o.ErrOut, "failed to list events in namespace %s: %s\n", namespace, err.Error())
			continue
		}
		fmt.Fprintf(o.Out, "\nNamespace: %s\n", namespace)
		printer.PrintAllWarningEvents(events, o.Out)
	}
}
