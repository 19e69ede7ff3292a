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
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest/fake"
	cmdtesting "k8s.io/kubectl/pkg/cmd/testing"

	"github.com/apecloud/optest/internal/cli/printer"
	"github.com/apecloud/optest/internal/cli/testing"
	"github.com/apecloud/optest/internal/cli/types"
	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/kube"
)

var _ = Describe("cleanup", func() {
	var (
		streams genericclioptions.IOStreams
		in      *bytes.Buffer
		out     *bytes.Buffer
		tf      *cmdtesting.TestFactory
	)

	BeforeEach(func() {
		streams, in, out, _ = genericclioptions.NewTestIOStreams()
		tf = cmdtesting.NewTestFactory().WithNamespace(testing.Namespace)
		tf.Client = &fake.RESTClient{}
	})

	AfterEach(func() {
		tf.Cleanup()
	})

	newOptions := func(client *kube.Client) *options {
		return &options{
			IOStreams:        streams,
			namespaces:       []string{testing.Namespace},
			instanceLabel:    kube.InstanceLabelKey,
			deleteNamespaces: true,
			output:           printer.Table,
			client:           client,
			policy:           checks.Policy{Interval: 10 * time.Millisecond, Timeout: time.Second},
		}
	}

	It("creates the cleanup command", func() {
		cmd := NewCleanupCmd(tf, streams)
		Expect(cmd).ShouldNot(BeNil())
		for _, name := range []string{"custom-resource", "operator-selector", "instance-label",
			"delete-namespaces", "dry-run", "auto-approve", "timeout", "output"} {
			Expect(cmd.Flags().Lookup(name)).ShouldNot(BeNil())
		}
	})

	It("completes options from the factory", func() {
		o := &options{IOStreams: streams}
		o.customResources = []string{"things.v1alpha1.test.optest.apecloud.io"}
		o.timeout = time.Minute
		Expect(o.complete(tf, nil)).Should(Succeed())
		Expect(o.namespaces).Should(Equal([]string{testing.Namespace}))
		Expect(o.gvrs).Should(Equal([]schema.GroupVersionResource{types.ThingGVR()}))
		Expect(o.policy.Timeout).Should(Equal(time.Minute))
		Expect(o.client).ShouldNot(BeNil())
		Expect(o.validate()).Should(Succeed())

		Expect(o.complete(tf, []string{"ns-1", "ns-2"})).Should(Succeed())
		Expect(o.namespaces).Should(Equal([]string{"ns-1", "ns-2"}))
	})

	It("rejects an invalid custom resource", func() {
		o := &options{IOStreams: streams}
		o.customResources = []string{"things"}
		Expect(o.complete(tf, nil)).Should(HaveOccurred())
	})

	It("rejects empty namespace names", func() {
		o := &options{IOStreams: streams, namespaces: []string{""}}
		Expect(o.validate()).Should(HaveOccurred())
	})

	It("previews artifacts with dry-run", func() {
		secrets := testing.FakeSecrets(testing.Namespace, testing.InstanceName)
		deploy := testing.FakeDeploy(testing.DeployName, testing.Namespace)
		o := newOptions(&kube.Client{
			ClientSet: testing.FakeClientSet(testing.FakeNamespace(testing.Namespace)),
			Dynamic:   testing.FakeDynamicClient(&secrets.Items[0], deploy),
		})
		o.dryRun = true
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("secrets"))
		Expect(out.String()).Should(ContainSubstring(testing.SecretName))
		Expect(out.String()).Should(ContainSubstring("deployments"))
		Expect(out.String()).Should(ContainSubstring("namespaces"))
	})

	It("previews artifacts as json", func() {
		o := newOptions(&kube.Client{
			ClientSet: testing.FakeClientSet(),
			Dynamic:   testing.FakeDynamicClient(testing.FakeThing(testing.InstanceName, testing.Namespace)),
		})
		o.dryRun = true
		o.output = printer.JSON
		o.gvrs = []schema.GroupVersionResource{types.ThingGVR()}
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring(`"things"`))
		Expect(out.String()).Should(ContainSubstring(testing.Namespace + "/" + testing.InstanceName))
	})

	It("reports when nothing is left", func() {
		o := newOptions(&kube.Client{
			ClientSet: testing.FakeClientSet(),
			Dynamic:   testing.FakeDynamicClient(),
		})
		o.dryRun = true
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("No artifacts found."))
	})

	It("asks for confirmation before deleting", func() {
		o := newOptions(&kube.Client{
			ClientSet: testing.FakeClientSet(),
			Dynamic:   testing.FakeDynamicClient(),
		})
		Expect(o.run()).Should(HaveOccurred())

		in.Write([]byte("cleanup\n"))
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("Cleanup done."))
	})

	It("cleans up everything with auto-approve", func() {
		secrets := testing.FakeSecrets(testing.Namespace, testing.InstanceName)
		thing := testing.FakeThing(testing.InstanceName, testing.Namespace)
		clientSet := testing.FakeClientSet(
			testing.FakeNamespace(testing.Namespace),
			&testing.FakePVCs().Items[0],
			testing.FakePV(),
		)
		dynamic := testing.FakeDynamicClient(&secrets.Items[0], thing)
		o := newOptions(&kube.Client{ClientSet: clientSet, Dynamic: dynamic})
		o.autoApprove = true
		o.gvrs = []schema.GroupVersionResource{types.ThingGVR()}
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("Cleanup done."))

		ctx := context.Background()
		_, err := dynamic.Resource(kube.SecretsGVR()).Namespace(testing.Namespace).Get(ctx, testing.SecretName, metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).Should(BeTrue())
		_, err = dynamic.Resource(types.ThingGVR()).Namespace(testing.Namespace).Get(ctx, testing.InstanceName, metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).Should(BeTrue())
		_, err = clientSet.CoreV1().PersistentVolumes().Get(ctx, testing.PVName, metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).Should(BeTrue())
		_, err = clientSet.CoreV1().Namespaces().Get(ctx, testing.Namespace, metav1.GetOptions{})
		Expect(apierrors.IsNotFound(err)).Should(BeTrue())
	})
})
