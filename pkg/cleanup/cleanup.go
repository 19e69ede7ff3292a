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
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8sapitypes "k8s.io/apimachinery/pkg/types"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/kube"
)

// Options configures what a Cleaner tears down and how long it waits for the
// cluster to converge.
type Options struct {
	// Namespaces are the test namespaces to clean up.
	Namespaces []string

	// CustomResources are the operator resources to purge before anything
	// else. Finalizers are removed when present so deletion cannot stall.
	CustomResources []schema.GroupVersionResource

	// InstanceLabelKey associates persistent volumes with the namespace's
	// claims. Defaults to app.kubernetes.io/instance.
	InstanceLabelKey string

	// OperatorSelector selects the cluster-scoped roles and role bindings
	// owned by the operator under test. Empty leaves cluster RBAC alone.
	OperatorSelector string

	// DeleteNamespaces removes the namespaces themselves after their content.
	DeleteNamespaces bool

	// Policy drives the verification loop. Zero value means the standard
	// retry policy.
	Policy checks.Policy
}

// Cleaner deletes everything an operator test may have left behind and
// verifies the cluster converged to empty.
type Cleaner struct {
	client *kube.Client
	log    logr.Logger
	opts   Options
}

// New returns a Cleaner for the given namespaces.
func New(client *kube.Client, log logr.Logger, opts Options) *Cleaner {
	if opts.InstanceLabelKey == "" {
		opts.InstanceLabelKey = kube.InstanceLabelKey
	}
	if opts.Policy == (checks.Policy{}) {
		opts.Policy = checks.DefaultPolicy()
	}
	return &Cleaner{
		client: client,
		log:    log,
		opts:   opts,
	}
}

// namespacedResources returns the namespaced resource kinds a test may leave
// behind, in deletion order. Workload owners go before the workloads they
// manage so nothing is recreated mid-flight.
func namespacedResources() []schema.GroupVersionResource {
	return []schema.GroupVersionResource{
		kube.ReplicaSetsGVR(),
		kube.JobsGVR(),
		kube.ConfigMapsGVR(),
		kube.SecretsGVR(),
		kube.DeploymentsGVR(),
		kube.PersistentVolumeClaimsGVR(),
		kube.ServicesGVR(),
		kube.IngressesGVR(),
		kube.ServiceAccountsGVR(),
		kube.RolesGVR(),
		kube.RoleBindingsGVR(),
	}
}

// Run deletes the artifacts and waits until the cluster no longer reports any
// of them. Delete failures are tolerated, verification decides the outcome.
func (c *Cleaner) Run(ctx context.Context) error {
	if err := c.DeleteArtifacts(ctx); err != nil {
		c.log.Error(err, "some artifacts could not be deleted, verification will retry")
	}
	return c.WaitUntilGone(ctx)
}

// DeleteArtifacts issues best-effort deletes for every artifact in every
// namespace. A failing kind never aborts the fan-out, all failures are
// aggregated into the returned error.
func (c *Cleaner) DeleteArtifacts(ctx context.Context) error {
	var allErrs []error
	appendErr := func(err error) {
		if err == nil || apierrors.IsNotFound(err) {
			return
		}
		allErrs = append(allErrs, err)
	}

	for _, namespace := range c.opts.Namespaces {
		c.log.V(1).Info("deleting artifacts", "namespace", namespace)

		for _, gvr := range c.opts.CustomResources {
			appendErr(c.deleteCustomResources(ctx, gvr, namespace))
		}
		for _, gvr := range namespacedResources() {
			// volumes go right after the claim owners so released PVs are
			// observed before their claims disappear
			if gvr == kube.DeploymentsGVR() {
				appendErr(c.deletePersistentVolumes(ctx, namespace))
			}
			appendErr(c.deleteNamespaced(ctx, gvr, namespace))
		}
	}

	appendErr(c.deleteClusterRBAC(ctx))

	if c.opts.DeleteNamespaces {
		for _, namespace := range c.opts.Namespaces {
			appendErr(c.client.DeleteNamespace(ctx, namespace))
		}
	}

	return utilerrors.NewAggregate(allErrs)
}

// WaitUntilGone polls under the configured policy until no artifact remains.
// On timeout the error names what was still present, kind by kind.
func (c *Cleaner) WaitUntilGone(ctx context.Context) error {
	var remained Artifacts
	err := c.opts.Policy.Wait(ctx, func(ctx context.Context) (bool, error) {
		artifacts, err := c.ListArtifacts(ctx)
		if err != nil {
			// a kind that cannot be listed gets another chance next round
			c.log.Error(err, "failed to list some artifacts")
		}
		remained = artifacts
		return artifacts.Empty(), nil
	})
	if err != nil {
		return errors.Wrapf(err, "resources remained after cleanup: %s", formatSummary(remained))
	}
	return nil
}

func (c *Cleaner) deleteNamespaced(ctx context.Context, gvr schema.GroupVersionResource, namespace string) error {
	list, err := c.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return resourceError(err, gvr, namespace)
	}
	for _, item := range list.Items {
		err = c.client.Dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, item.GetName(), newDeleteOpts())
		if err != nil && !apierrors.IsNotFound(err) {
			return resourceError(err, gvr, namespace)
		}
	}
	return nil
}

// deleteCustomResources purges the operator's own objects. Finalizers are
// stripped first, a stuck finalizer would otherwise hold the namespace in
// Terminating forever.
func (c *Cleaner) deleteCustomResources(ctx context.Context, gvr schema.GroupVersionResource, namespace string) error {
	list, err := c.client.Dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return resourceError(err, gvr, namespace)
	}
	for i := range list.Items {
		cr := &list.Items[i]
		if err = c.removeFinalizers(ctx, gvr, cr); err != nil && !apierrors.IsNotFound(err) {
			return resourceError(err, gvr, namespace)
		}
		err = c.client.Dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, cr.GetName(), newDeleteOpts())
		if err != nil && !apierrors.IsNotFound(err) {
			return resourceError(err, gvr, namespace)
		}
	}
	return nil
}

func (c *Cleaner) removeFinalizers(ctx context.Context, gvr schema.GroupVersionResource, cr *unstructured.Unstructured) error {
	if len(cr.GetFinalizers()) == 0 {
		return nil
	}
	_, err := c.client.Dynamic.Resource(gvr).Namespace(cr.GetNamespace()).Patch(ctx, cr.GetName(),
		k8sapitypes.JSONPatchType, []byte("[{\"op\": \"remove\", \"path\": \"/metadata/finalizers\"}]"),
		metav1.PatchOptions{})
	return err
}

// deletePersistentVolumes removes the PVs backing the namespace's claims.
// PVs are cluster-scoped, the association runs through the claim ref and the
// instance label values found on the namespace's claims.
func (c *Cleaner) deletePersistentVolumes(ctx context.Context, namespace string) error {
	pvs, err := c.persistentVolumes(ctx, namespace)
	if err != nil {
		return err
	}
	for _, pv := range pvs {
		err = c.client.ClientSet.CoreV1().PersistentVolumes().Delete(ctx, pv.Name, newDeleteOpts())
		if err != nil && !apierrors.IsNotFound(err) {
			return errors.Wrapf(err, "failed to delete persistentvolume %s", pv.Name)
		}
	}
	return nil
}

func (c *Cleaner) persistentVolumes(ctx context.Context, namespace string) ([]corev1.PersistentVolume, error) {
	return kube.AssociatedPersistentVolumes(ctx, c.client, namespace, c.opts.InstanceLabelKey)
}

// deleteClusterRBAC removes the cluster roles and bindings the operator under
// test installed, selected by the operator selector.
func (c *Cleaner) deleteClusterRBAC(ctx context.Context) error {
	if c.opts.OperatorSelector == "" {
		return nil
	}
	var allErrs []error
	for _, gvr := range []schema.GroupVersionResource{kube.ClusterRolesGVR(), kube.ClusterRoleBindingsGVR()} {
		list, err := c.client.Dynamic.Resource(gvr).List(ctx, metav1.ListOptions{
			LabelSelector: c.opts.OperatorSelector,
		})
		if err != nil {
			allErrs = append(allErrs, resourceError(err, gvr, ""))
			continue
		}
		for _, item := range list.Items {
			err = c.client.Dynamic.Resource(gvr).Delete(ctx, item.GetName(), newDeleteOpts())
			if err != nil && !apierrors.IsNotFound(err) {
				allErrs = append(allErrs, resourceError(err, gvr, ""))
			}
		}
	}
	return utilerrors.NewAggregate(allErrs)
}

func resourceError(err error, gvr schema.GroupVersionResource, namespace string) error {
	if namespace == "" {
		return errors.Wrapf(err, "resource %s", gvr.Resource)
	}
	return errors.Wrapf(err, "resource %s in namespace %s", gvr.Resource, namespace)
}

func formatSummary(artifacts Artifacts) string {
	summary := artifacts.Summary()
	if len(summary) == 0 {
		return kube.None
	}
	keys := sortedKeys(summary)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(summary[k], ",")))
	}
	return strings.Join(parts, "; ")
}

func newDeleteOpts() metav1.DeleteOptions {
	gracePeriod := int64(0)
	return metav1.DeleteOptions{
		GracePeriodSeconds: &gracePeriod,
	}
}
