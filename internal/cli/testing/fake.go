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

package testing

import (
	"fmt"
	"time"

	"github.com/sethvargo/go-password/password"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfakeclient "k8s.io/client-go/dynamic/fake"
	fakeclientset "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/pointer"

	"github.com/apecloud/optest/internal/cli/types"
	"github.com/apecloud/optest/pkg/kube"
)

const (
	Namespace        = "fake-namespace"
	InstanceName     = "fake-instance"
	OperatorName     = "fake-operator"
	NodeName         = "fake-node-name"
	SecretName       = "fake-secret-name"
	StorageClassName = "fake-storage-class"
	PVCName          = "fake-pvc"
	PVName           = "fake-pv"
	DeployName       = "fake-operator-deploy"
	ClusterRoleName  = "fake-cluster-role"
)

func GetRandomStr() string {
	seq, _ := password.Generate(6, 2, 0, true, true)
	return seq
}

// FakeThing returns an instance of the sample custom resource registered with
// FakeDynamicClient, carrying a finalizer like an operator-owned object would.
func FakeThing(name string, namespace string) *unstructured.Unstructured {
	thing := &unstructured.Unstructured{}
	thing.SetAPIVersion(types.Group + "/" + types.Version)
	thing.SetKind(types.KindThing)
	thing.SetName(name)
	thing.SetNamespace(namespace)
	thing.SetLabels(map[string]string{kube.InstanceLabelKey: InstanceName})
	thing.SetFinalizers([]string{types.Group + "/finalizer"})
	return thing
}

func FakePods(replicas int, namespace string, instance string) *corev1.PodList {
	pods := &corev1.PodList{}
	for i := 0; i < replicas; i++ {
		pod := corev1.Pod{}
		pod.Name = fmt.Sprintf("%s-pod-%d", instance, i)
		pod.Namespace = namespace
		pod.Labels = map[string]string{
			kube.InstanceLabelKey:  instance,
			kube.ManagedByLabelKey: OperatorName,
		}
		pod.Spec.NodeName = NodeName
		pod.Spec.Containers = []corev1.Container{
			{
				Name:  "manager",
				Image: "fake-operator-image",
			},
		}
		pod.Status.Phase = corev1.PodRunning
		pods.Items = append(pods.Items, pod)
	}
	return pods
}

func FakeSecrets(namespace string, instance string) *corev1.SecretList {
	secret := corev1.Secret{}
	secret.Name = SecretName
	secret.Namespace = namespace
	secret.Type = corev1.SecretTypeOpaque
	secret.Labels = map[string]string{
		kube.InstanceLabelKey:  instance,
		kube.ManagedByLabelKey: OperatorName,
	}

	secret.Data = map[string][]byte{
		"username": []byte("admin"),
		"password": []byte("changeit"),
	}
	return &corev1.SecretList{Items: []corev1.Secret{secret}}
}

func FakeServices() *corev1.ServiceList {
	cases := []struct {
		name      string
		clusterIP string
	}{
		{"fake-svc-headless", "None"},
		{"fake-svc-cluster-ip", "192.168.0.1"},
	}

	var services []corev1.Service
	for _, item := range cases {
		svc := corev1.Service{
			ObjectMeta: metav1.ObjectMeta{
				Name:      item.name,
				Namespace: Namespace,
				Labels: map[string]string{
					kube.InstanceLabelKey:  InstanceName,
					kube.ManagedByLabelKey: OperatorName,
				},
			},
			Spec: corev1.ServiceSpec{
				Type:      corev1.ServiceTypeClusterIP,
				ClusterIP: item.clusterIP,
				Ports:     []corev1.ServicePort{{Port: 8080}},
			},
		}
		services = append(services, svc)
	}
	return &corev1.ServiceList{Items: services}
}

func FakePVCs() *corev1.PersistentVolumeClaimList {
	pvcs := &corev1.PersistentVolumeClaimList{}
	pvc := corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: Namespace,
			Name:      PVCName,
			Labels: map[string]string{
				kube.InstanceLabelKey:  InstanceName,
				kube.ManagedByLabelKey: OperatorName,
			},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			StorageClassName: pointer.String(StorageClassName),
			AccessModes:      []corev1.PersistentVolumeAccessMode{"ReadWriteOnce"},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse("1Gi"),
				},
			},
			VolumeName: PVName,
		},
	}
	pvcs.Items = append(pvcs.Items, pvc)
	return pvcs
}

// FakePV returns a volume bound to the claim of FakePVCs.
func FakePV() *corev1.PersistentVolume {
	pv := &corev1.PersistentVolume{}
	pv.Name = PVName
	pv.Labels = map[string]string{kube.InstanceLabelKey: InstanceName}
	pv.Spec.ClaimRef = &corev1.ObjectReference{
		Namespace: Namespace,
		Name:      PVCName,
	}
	pv.Status.Phase = corev1.VolumeBound
	return pv
}

// FakeEvents returns two warning events an hour apart, oldest carrying the
// scheduling failure.
func FakeEvents() *corev1.EventList {
	base := time.Date(2023, 2, 20, 8, 0, 0, 0, time.UTC)
	fakeEvent := func(name string, last time.Time, reason, message string) corev1.Event {
		e := corev1.Event{}
		e.Name = name
		e.Namespace = Namespace
		e.Type = corev1.EventTypeWarning
		e.Reason = reason
		e.Message = message
		e.InvolvedObject = corev1.ObjectReference{
			Kind:      "Pod",
			Name:      fmt.Sprintf("%s-pod-0", InstanceName),
			Namespace: Namespace,
		}
		e.SetCreationTimestamp(metav1.NewTime(last))
		e.LastTimestamp = metav1.NewTime(last)
		return e
	}

	return &corev1.EventList{Items: []corev1.Event{
		fakeEvent("sched-fail", base, "FailedScheduling", "0/3 nodes are available"),
		fakeEvent("crash-loop", base.Add(time.Hour), "BackOff", "Back-off restarting failed container"),
	}}
}

func FakeNamespace(name string) *corev1.Namespace {
	ns := &corev1.Namespace{}
	ns.Name = name
	ns.Labels = map[string]string{kube.TestObjectLabelKey: "true"}
	ns.Status.Phase = corev1.NamespaceActive
	return ns
}

func FakeDeploy(name string, namespace string) *appsv1.Deployment {
	labels := map[string]string{
		kube.InstanceLabelKey:  InstanceName,
		kube.ManagedByLabelKey: OperatorName,
	}
	deploy := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "manager",
							Image: "fake-operator-image",
						},
					},
				},
			},
		},
	}
	return deploy
}

func FakeNode() *corev1.Node {
	node := &corev1.Node{}
	node.Name = NodeName
	node.Spec.ProviderID = "aws:///us-east-1a/i-0123456789abcdef0"
	return node
}

func FakeClusterRole() *rbacv1.ClusterRole {
	role := &rbacv1.ClusterRole{}
	role.Name = ClusterRoleName
	role.Labels = map[string]string{"release": OperatorName}
	role.Rules = []rbacv1.PolicyRule{
		{
			APIGroups: []string{""},
			Resources: []string{"pods"},
			Verbs:     []string{"get", "list"},
		},
	}
	return role
}

func FakeClusterRoleBinding() *rbacv1.ClusterRoleBinding {
	binding := &rbacv1.ClusterRoleBinding{}
	binding.Name = ClusterRoleName + "-binding"
	binding.Labels = map[string]string{"release": OperatorName}
	binding.RoleRef = rbacv1.RoleRef{
		APIGroup: rbacv1.GroupName,
		Kind:     "ClusterRole",
		Name:     ClusterRoleName,
	}
	binding.Subjects = []rbacv1.Subject{
		{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      "fake-sa",
			Namespace: Namespace,
		},
	}
	return binding
}

func FakeClientSet(objects ...runtime.Object) *fakeclientset.Clientset {
	return fakeclientset.NewSimpleClientset(objects...)
}

func FakeDynamicClient(objects ...runtime.Object) *dynamicfakeclient.FakeDynamicClient {
	listMapping := map[schema.GroupVersionResource]string{
		types.ThingGVR(): types.KindThing + "List",
	}
	return dynamicfakeclient.NewSimpleDynamicClientWithCustomListKinds(scheme.Scheme, listMapping, objects...)
}
