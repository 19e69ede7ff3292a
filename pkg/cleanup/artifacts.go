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

package cleanup

import (
	"context"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/apecloud/optest/pkg/kube"
)

// Artifacts is a snapshot of the resources a test run left on the cluster,
// keyed by resource kind.
type Artifacts map[schema.GroupVersionResource]*unstructured.UnstructuredList

// Empty reports whether the snapshot holds no resources at all.
func (a Artifacts) Empty() bool {
	return a.Count() == 0
}

// Count returns the total number of resources in the snapshot.
func (a Artifacts) Count() int {
	n := 0
	for _, list := range a {
		if list != nil {
			n += len(list.Items)
		}
	}
	return n
}

// Summary flattens the snapshot into resource kind to namespace/name pairs,
// ready for printing.
func (a Artifacts) Summary() map[string][]string {
	summary := map[string][]string{}
	for gvr, list := range a {
		if list == nil || len(list.Items) == 0 {
			continue
		}
		names := make([]string, 0, len(list.Items))
		for _, item := range list.Items {
			if ns := item.GetNamespace(); ns != "" {
				names = append(names, fmt.Sprintf("%s/%s", ns, item.GetName()))
			} else {
				names = append(names, item.GetName())
			}
		}
		slices.Sort(names)
		summary[gvr.Resource] = names
	}
	return summary
}

// ListArtifacts takes a fresh snapshot of everything still present. A kind
// that cannot be listed is skipped for this snapshot and reported through the
// aggregated error, the partial snapshot is still returned.
func (c *Cleaner) ListArtifacts(ctx context.Context) (Artifacts, error) {
	artifacts := Artifacts{}
	var allErrs []error
	appendErr := func(err error) {
		if err == nil || apierrors.IsNotFound(err) {
			return
		}
		allErrs = append(allErrs, err)
	}
	record := func(gvr schema.GroupVersionResource, list *unstructured.UnstructuredList) {
		if list == nil || len(list.Items) == 0 {
			return
		}
		if prev, ok := artifacts[gvr]; ok {
			prev.Items = append(prev.Items, list.Items...)
			return
		}
		artifacts[gvr] = list
	}

	kinds := append([]schema.GroupVersionResource{}, c.opts.CustomResources...)
	kinds = append(kinds, namespacedResources()...)

	for _, namespace := range c.opts.Namespaces {
		for _, gvr := range kinds {
			list, err := c.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
			if err != nil {
				appendErr(resourceError(err, gvr, namespace))
				continue
			}
			record(gvr, list)
		}
		record(kube.PersistentVolumesGVR(), c.remainingVolumes(ctx, namespace, appendErr))
	}

	if c.opts.OperatorSelector != "" {
		for _, gvr := range []schema.GroupVersionResource{kube.ClusterRolesGVR(), kube.ClusterRoleBindingsGVR()} {
			list, err := c.client.Dynamic.Resource(gvr).List(ctx, metav1.ListOptions{
				LabelSelector: c.opts.OperatorSelector,
			})
			if err != nil {
				appendErr(resourceError(err, gvr, ""))
				continue
			}
			record(gvr, list)
		}
	}

	if c.opts.DeleteNamespaces {
		record(kube.NamespacesGVR(), c.remainingNamespaces(ctx))
	}

	return artifacts, utilerrors.NewAggregate(allErrs)
}

func (c *Cleaner) remainingVolumes(ctx context.Context, namespace string, appendErr func(error)) *unstructured.UnstructuredList {
	pvs, err := c.persistentVolumes(ctx, namespace)
	if err != nil {
		appendErr(err)
		return nil
	}
	list := &unstructured.UnstructuredList{}
	for _, pv := range pvs {
		item := unstructured.Unstructured{}
		item.SetName(pv.Name)
		list.Items = append(list.Items, item)
	}
	return list
}

// remainingNamespaces reports the namespaces still known to the API server.
// Only an affirmative not-found counts as gone, any other failure keeps the
// namespace in the snapshot so verification does not pass on a flaky get.
func (c *Cleaner) remainingNamespaces(ctx context.Context) *unstructured.UnstructuredList {
	list := &unstructured.UnstructuredList{}
	for _, namespace := range c.opts.Namespaces {
		_, err := c.client.ClientSet.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			continue
		}
		item := unstructured.Unstructured{}
		item.SetName(namespace)
		list.Items = append(list.Items, item)
	}
	return list
}

func sortedKeys(m map[string][]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
