/*
Copyright (C) 2022-2023 ApeCloud Co., Ltd

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

package harnesstest

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leaanthony/debme"
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/ginkgo/v2/types"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"

	clitypes "github.com/apecloud/optest/internal/cli/types"
	"github.com/apecloud/optest/internal/testutil"
	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/cleanup"
	"github.com/apecloud/optest/pkg/kube"
)

//go:embed testdata
var testdataFS embed.FS

func testdataFile(name string) []byte {
	fs, err := debme.FS(testdataFS, "testdata")
	Expect(err).NotTo(HaveOccurred())
	data, err := fs.ReadFile(name)
	Expect(err).NotTo(HaveOccurred())
	return data
}

// applyManifests creates every document of a multi-doc manifest in the given
// namespace, labeled as a test object.
func applyManifests(namespace string, data []byte) {
	for _, doc := range strings.Split(string(data), "\n---") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		obj := &unstructured.Unstructured{}
		Expect(yaml.Unmarshal([]byte(doc), &obj.Object)).To(Succeed())
		obj.SetNamespace(namespace)
		Expect(testCtx.CreateObj(ctx, obj)).To(Succeed())
	}
}

func operatorLabels() map[string]string {
	return map[string]string{kube.ManagedByLabelKey: "optest-sample"}
}

var _ = Describe("Operator lifecycle", func() {
	It("provisions namespaces, collects diagnostics and cleans up", func() {
		By("provisioning the operator and workload namespaces")
		namespaces, err := suite.ProvisionNamespaces(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(namespaces).To(HaveLen(2))
		operatorNS, workloadNS := namespaces[0], namespaces[1]

		suite.StageStarted("Deploy Sample Operator")

		By("deploying the sample operator")
		applyManifests(operatorNS, testdataFile("operator.yaml"))

		clusterRoleName := "optest-sample-" + testCtx.GetRandomStr()
		_, err = kubeClient.ClientSet.RbacV1().ClusterRoles().Create(ctx, &rbacv1.ClusterRole{
			ObjectMeta: metav1.ObjectMeta{Name: clusterRoleName, Labels: operatorLabels()},
			Rules: []rbacv1.PolicyRule{{
				APIGroups: []string{clitypes.Group},
				Resources: []string{clitypes.ResourceThings},
				Verbs:     []string{"get", "list", "watch"},
			}},
		}, metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		_, err = kubeClient.ClientSet.RbacV1().ClusterRoleBindings().Create(ctx, &rbacv1.ClusterRoleBinding{
			ObjectMeta: metav1.ObjectMeta{Name: clusterRoleName, Labels: operatorLabels()},
			RoleRef:    rbacv1.RoleRef{APIGroup: rbacv1.GroupName, Kind: "ClusterRole", Name: clusterRoleName},
			Subjects: []rbacv1.Subject{{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      "optest-operator",
				Namespace: operatorNS,
			}},
		}, metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		By("waiting for the operator service")
		Expect(suitePolicy.Wait(ctx, checks.ServiceExists(kubeClient, operatorNS, "optest-operator"))).To(Succeed())
		if testutil.UsingExistingCluster() {
			// pods only run on a real cluster, and log collection needs them
			// past ContainerCreating
			Expect(suitePolicy.Wait(ctx, checks.DeploymentReady(kubeClient, operatorNS, "optest-operator"))).To(Succeed())
		}

		By("creating a workload resource with a finalizer")
		applyManifests(workloadNS, testdataFile("thing.yaml"))
		thing, err := kubeClient.Dynamic.Resource(clitypes.ThingGVR()).Namespace(workloadNS).
			Get(ctx, "thing-sample", metav1.GetOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(thing.GetFinalizers()).NotTo(BeEmpty())

		suite.StageFinished("Deploy Sample Operator")

		By("dumping diagnostics the way a failed spec would")
		report := types.SpecReport{State: types.SpecStateFailed, LeafNodeText: "Deploy Sample Operator"}
		Expect(suite.CollectOnFailure(ctx, report)).To(Succeed())

		dumpDir := filepath.Join(logsDir, "integration", "deploy-sample-operator")
		nsDump, err := os.ReadFile(filepath.Join(dumpDir, operatorNS+"_ns.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(nsDump)).To(ContainSubstring(operatorNS))
		secretDump, err := os.ReadFile(filepath.Join(dumpDir, operatorNS+"_secrets.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(secretDump)).To(ContainSubstring("<redacted>"))
		Expect(string(secretDump)).NotTo(ContainSubstring("changeit"))
		deployDump, err := os.ReadFile(filepath.Join(dumpDir, operatorNS+"_deploy.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(deployDump)).To(ContainSubstring("optest-operator"))
		thingDump, err := os.ReadFile(filepath.Join(dumpDir, workloadNS+"_things.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(thingDump)).To(ContainSubstring("thing-sample"))

		By("cleaning the namespaces back to empty")
		// a real control plane recreates the default service account and the
		// root ca configmap, content-only cleanup converges on envtest alone
		cleaner := cleanup.New(kubeClient, logf.Log, cleanup.Options{
			Namespaces:       namespaces,
			CustomResources:  []schema.GroupVersionResource{clitypes.ThingGVR()},
			OperatorSelector: operatorSelector,
			DeleteNamespaces: testutil.UsingExistingCluster(),
			Policy:           suitePolicy,
		})
		Expect(cleaner.Run(ctx)).To(Succeed())

		artifacts, err := cleaner.ListArtifacts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(artifacts.Empty()).To(BeTrue())

		_, err = kubeClient.Dynamic.Resource(clitypes.ThingGVR()).Namespace(workloadNS).
			Get(ctx, "thing-sample", metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).To(BeTrue())
		_, err = kubeClient.ClientSet.RbacV1().ClusterRoles().Get(ctx, clusterRoleName, metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).To(BeTrue())
	})

	It("reports what remains when verification times out", func() {
		namespaces, err := suite.ProvisionNamespaces(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		ns := namespaces[0]

		_, err = kubeClient.ClientSet.CoreV1().ConfigMaps(ns).Create(ctx, leftoverConfigMap(), metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		verifier := cleanup.New(kubeClient, logf.Log, cleanup.Options{
			Namespaces: []string{ns},
			Policy:     checks.Policy{Interval: time.Second, Timeout: 3 * time.Second},
		})
		err = verifier.WaitUntilGone(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("resources remained after cleanup"))
		Expect(err.Error()).To(ContainSubstring("configmaps"))
		Expect(err.Error()).To(ContainSubstring(ns + "/leftover"))

		By("cleaning the namespace once the leftover is accounted for")
		Expect(cleanup.New(kubeClient, logf.Log, cleanup.Options{
			Namespaces:       []string{ns},
			DeleteNamespaces: testutil.UsingExistingCluster(),
			Policy:           suitePolicy,
		}).Run(ctx)).To(Succeed())
	})
})

func leftoverConfigMap() *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:   "leftover",
			Labels: map[string]string{kube.TestObjectLabelKey: "true"},
		},
		Data: map[string]string{"note": "survives until cleanup"},
	}
}
