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

package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/kube"
)

const (
	// DefaultDir is where diagnostics land when no directory is configured.
	DefaultDir = "/tmp/optest-diagnostics"

	redactedPlaceholder = "<redacted>"
)

// Options configures a Collector.
type Options struct {
	// Dir is the directory the dump files are written to.
	Dir string

	// CustomResources are the operator resource kinds dumped alongside the
	// built-in kinds.
	CustomResources []schema.GroupVersionResource

	// InstanceLabelKey associates persistent volumes with the namespace's
	// claims. Defaults to app.kubernetes.io/instance.
	InstanceLabelKey string

	// PVArchive also copies the content of every claim-backed volume into a
	// tar file, through a short-lived helper pod.
	PVArchive bool

	// ArchiveImage is the helper pod image. Defaults to busybox.
	ArchiveImage string

	// ArchiveTimeout bounds a single volume copy. Defaults to one minute.
	ArchiveTimeout metav1.Duration

	// Policy drives the wait for the helper pod. Zero value means the
	// standard retry policy.
	Policy checks.Policy
}

// Collector dumps the state of test namespaces to files, one artifact kind
// per file, so a failed run can be debugged after its namespaces are gone.
type Collector struct {
	client *kube.Client
	log    logr.Logger
	opts   Options

	// Exec streams remote commands for the volume archiver. Replaceable for
	// testing.
	Exec RemoteExecutor
}

// New returns a Collector writing to opts.Dir.
func New(client *kube.Client, log logr.Logger, opts Options) *Collector {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.InstanceLabelKey == "" {
		opts.InstanceLabelKey = kube.InstanceLabelKey
	}
	if opts.ArchiveImage == "" {
		opts.ArchiveImage = "busybox"
	}
	if opts.ArchiveTimeout.Duration <= 0 {
		opts.ArchiveTimeout = metav1.Duration{Duration: defaultArchiveTimeout}
	}
	if opts.Policy == (checks.Policy{}) {
		opts.Policy = checks.DefaultPolicy()
	}
	return &Collector{
		client: client,
		log:    log,
		opts:   opts,
		Exec:   &spdyExecutor{},
	}
}

// CollectAll collects every namespace concurrently into the same directory.
func (c *Collector) CollectAll(ctx context.Context, namespaces []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, namespace := range namespaces {
		namespace := namespace
		g.Go(func() error {
			return c.CollectNamespace(gctx, namespace)
		})
	}
	return g.Wait()
}

// CollectNamespace writes one YAML dump per artifact kind plus the logs of
// every pod. A kind that cannot be collected is logged and skipped, the rest
// of the collection still runs.
func (c *Collector) CollectNamespace(ctx context.Context, namespace string) error {
	if err := os.MkdirAll(c.opts.Dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create diagnostics dir %s", c.opts.Dir)
	}
	c.log.V(1).Info("collecting diagnostics", "namespace", namespace, "dir", c.opts.Dir)

	var allErrs []error
	appendErr := func(err error) {
		if err == nil || apierrors.IsNotFound(err) {
			return
		}
		c.log.Error(err, "failed to collect artifact", "namespace", namespace)
		allErrs = append(allErrs, err)
	}

	appendErr(c.dumpResource(ctx, namespace, "sa", kube.ServiceAccountsGVR(), nil))
	appendErr(c.dumpNamespace(ctx, namespace))
	appendErr(c.dumpResource(ctx, namespace, "pvc", kube.PersistentVolumeClaimsGVR(), nil))
	appendErr(c.dumpVolumes(ctx, namespace))
	appendErr(c.dumpResource(ctx, namespace, "secrets", kube.SecretsGVR(), redactSecrets))
	appendErr(c.dumpResource(ctx, namespace, "cm", kube.ConfigMapsGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "jobs", kube.JobsGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "deploy", kube.DeploymentsGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "rs", kube.ReplicaSetsGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "svc", kube.ServicesGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "ing", kube.IngressesGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "events", kube.EventsGVR(), nil))
	appendErr(c.dumpResource(ctx, namespace, "pods", kube.PodsGVR(), nil))
	for _, gvr := range c.opts.CustomResources {
		appendErr(c.dumpResource(ctx, namespace, gvr.Resource, gvr, nil))
	}

	appendErr(c.collectPodLogs(ctx, namespace))

	if c.opts.PVArchive {
		appendErr(c.ArchivePersistentVolumes(ctx, namespace))
	}

	return utilerrors.NewAggregate(allErrs)
}

func (c *Collector) dumpResource(ctx context.Context, namespace, short string,
	gvr schema.GroupVersionResource, transform func(*unstructured.UnstructuredList)) error {
	list, err := c.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to list %s in namespace %s", gvr.Resource, namespace)
	}
	for i := range list.Items {
		unstructured.RemoveNestedField(list.Items[i].Object, "metadata", "managedFields")
	}
	if transform != nil {
		transform(list)
	}
	data, err := yaml.Marshal(list)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s dump", gvr.Resource)
	}
	return c.write(dumpFileName(namespace, short), data)
}

func (c *Collector) dumpNamespace(ctx context.Context, namespace string) error {
	obj, err := c.client.Dynamic.Resource(kube.NamespacesGVR()).Get(ctx, namespace, metav1.GetOptions{})
	if err != nil {
		return err
	}
	unstructured.RemoveNestedField(obj.Object, "metadata", "managedFields")
	data, err := yaml.Marshal(obj)
	if err != nil {
		return errors.Wrap(err, "failed to marshal namespace dump")
	}
	return c.write(dumpFileName(namespace, "ns"), data)
}

func (c *Collector) dumpVolumes(ctx context.Context, namespace string) error {
	pvs, err := kube.AssociatedPersistentVolumes(ctx, c.client, namespace, c.opts.InstanceLabelKey)
	if err != nil {
		return err
	}
	for i := range pvs {
		pvs[i].ManagedFields = nil
	}
	data, err := yaml.Marshal(pvs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal persistent volume dump")
	}
	return c.write(dumpFileName(namespace, "pv"), data)
}

// collectPodLogs writes the logs of every container of every pod, one file
// per pod with one section per container.
func (c *Collector) collectPodLogs(ctx context.Context, namespace string) error {
	pods, err := c.client.ClientSet.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to list pods in namespace %s", namespace)
	}

	var allErrs []error
	for _, pod := range pods.Items {
		var buf bytes.Buffer
		containers := make([]corev1.Container, 0, len(pod.Spec.InitContainers)+len(pod.Spec.Containers))
		containers = append(containers, pod.Spec.InitContainers...)
		containers = append(containers, pod.Spec.Containers...)
		for _, container := range containers {
			data, err := c.client.ClientSet.CoreV1().Pods(namespace).
				GetLogs(pod.Name, &corev1.PodLogOptions{Container: container.Name}).DoRaw(ctx)
			if err != nil {
				allErrs = append(allErrs, errors.Wrapf(err, "failed to get logs of %s/%s container %s",
					namespace, pod.Name, container.Name))
				continue
			}
			fmt.Fprintf(&buf, "==== container %s ====\n", container.Name)
			buf.Write(data)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				buf.WriteByte('\n')
			}
		}
		if err = c.write(podLogFileName(namespace, pod.Name), buf.Bytes()); err != nil {
			allErrs = append(allErrs, err)
		}
	}
	return utilerrors.NewAggregate(allErrs)
}

func (c *Collector) write(name string, data []byte) error {
	path := filepath.Join(c.opts.Dir, name)
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to write %s", path)
}

func dumpFileName(namespace, short string) string {
	return fmt.Sprintf("%s_%s.log", namespace, short)
}

func podLogFileName(namespace, pod string) string {
	return fmt.Sprintf("%s-pod_%s.log", namespace, pod)
}

// redactSecrets blanks secret data so dumps can be attached to reports.
func redactSecrets(list *unstructured.UnstructuredList) {
	for i := range list.Items {
		data, found, _ := unstructured.NestedMap(list.Items[i].Object, "data")
		if !found {
			continue
		}
		for k := range data {
			data[k] = redactedPlaceholder
		}
		_ = unstructured.SetNestedMap(list.Items[i].Object, data, "data")
	}
}
