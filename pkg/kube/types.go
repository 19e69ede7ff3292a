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

package kube

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	// AppsGroup k8s apps group
	AppsGroup = "apps"
	// BatchGroup k8s batch group
	BatchGroup = "batch"
	// RBACGroup k8s rbac group
	RBACGroup = "rbac.authorization.k8s.io"
	// NetworkingGroup k8s networking group
	NetworkingGroup = "networking.k8s.io"

	VersionV1 = "v1"

	// ResourceDeployments deployment resource
	ResourceDeployments = "deployments"
	// ResourceReplicaSets replicaset resource
	ResourceReplicaSets = "replicasets"
	// ResourceJobs job resource
	ResourceJobs = "jobs"
	// ResourceConfigMaps configmap resource
	ResourceConfigMaps = "configmaps"
	// ResourceSecrets secret resource
	ResourceSecrets = "secrets"
	// ResourceServices service resource
	ResourceServices = "services"
	// ResourceServiceAccounts serviceaccount resource
	ResourceServiceAccounts = "serviceaccounts"
	// ResourcePods pod resource
	ResourcePods = "pods"
	// ResourceEvents event resource
	ResourceEvents = "events"
	// ResourceIngresses ingress resource
	ResourceIngresses = "ingresses"
	// ResourcePVCs persistentvolumeclaim resource
	ResourcePVCs = "persistentvolumeclaims"
	// ResourcePVs persistentvolume resource
	ResourcePVs = "persistentvolumes"
	// ResourceRoles role resource
	ResourceRoles = "roles"
	// ResourceRoleBindings rolebinding resource
	ResourceRoleBindings = "rolebindings"
	// ResourceClusterRoles clusterrole resource
	ResourceClusterRoles = "clusterroles"
	// ResourceClusterRoleBindings clusterrolebinding resource
	ResourceClusterRoleBindings = "clusterrolebindings"
	// ResourceNamespaces namespace resource
	ResourceNamespaces = "namespaces"

	// InstanceLabelKey labels resources with the operator instance that owns them
	InstanceLabelKey = "app.kubernetes.io/instance"
	// ManagedByLabelKey labels resources with the operator that manages them
	ManagedByLabelKey = "app.kubernetes.io/managed-by"
	// TestObjectLabelKey labels objects the harness itself creates
	TestObjectLabelKey = "optest.apecloud.io/test"

	None = "<none>"
)

func DeploymentsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: AppsGroup, Version: VersionV1, Resource: ResourceDeployments}
}

func ReplicaSetsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: AppsGroup, Version: VersionV1, Resource: ResourceReplicaSets}
}

func JobsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: BatchGroup, Version: VersionV1, Resource: ResourceJobs}
}

func ConfigMapsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceConfigMaps}
}

func SecretsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceSecrets}
}

func ServicesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceServices}
}

func ServiceAccountsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceServiceAccounts}
}

func PodsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourcePods}
}

func EventsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceEvents}
}

func IngressesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: NetworkingGroup, Version: VersionV1, Resource: ResourceIngresses}
}

func PersistentVolumeClaimsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourcePVCs}
}

func PersistentVolumesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourcePVs}
}

func RolesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: RBACGroup, Version: VersionV1, Resource: ResourceRoles}
}

func RoleBindingsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: RBACGroup, Version: VersionV1, Resource: ResourceRoleBindings}
}

func ClusterRolesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: RBACGroup, Version: VersionV1, Resource: ResourceClusterRoles}
}

func ClusterRoleBindingsGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: RBACGroup, Version: VersionV1, Resource: ResourceClusterRoleBindings}
}

func NamespacesGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: corev1.GroupName, Version: VersionV1, Resource: ResourceNamespaces}
}

func CRDGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{
		Group:    "apiextensions.k8s.io",
		Version:  VersionV1,
		Resource: "customresourcedefinitions",
	}
}
