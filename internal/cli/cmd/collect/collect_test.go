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

package collect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest/fake"
	clientgotesting "k8s.io/client-go/testing"
	cmdtesting "k8s.io/kubectl/pkg/cmd/testing"

	"github.com/apecloud/optest/internal/cli/testing"
	"github.com/apecloud/optest/internal/cli/types"
	"github.com/apecloud/optest/pkg/kube"
)

var _ = Describe("collect", func() {
	var (
		streams genericclioptions.IOStreams
		out     *bytes.Buffer
		tf      *cmdtesting.TestFactory
	)

	BeforeEach(func() {
		streams, _, out, _ = genericclioptions.NewTestIOStreams()
		tf = cmdtesting.NewTestFactory().WithNamespace(testing.Namespace)
		tf.Client = &fake.RESTClient{}
	})

	AfterEach(func() {
		tf.Cleanup()
	})

	It("creates the collect command", func() {
		cmd := NewCollectCmd(tf, streams)
		Expect(cmd).ShouldNot(BeNil())
		for _, name := range []string{"output-dir", "custom-resource", "instance-label",
			"pv-archive", "archive-image", "archive-timeout"} {
			Expect(cmd.Flags().Lookup(name)).ShouldNot(BeNil())
		}
	})

	It("completes options from the factory", func() {
		o := &options{IOStreams: streams}
		o.customResources = []string{"things.v1alpha1.test.optest.apecloud.io"}
		Expect(o.complete(tf, nil)).Should(Succeed())
		Expect(o.namespaces).Should(Equal([]string{testing.Namespace}))
		Expect(o.gvrs).Should(Equal([]schema.GroupVersionResource{types.ThingGVR()}))
		Expect(o.client).ShouldNot(BeNil())

		o.outputDir = "/tmp/out"
		Expect(o.validate()).Should(Succeed())
		o.outputDir = ""
		Expect(o.validate()).Should(HaveOccurred())
	})

	It("collects diagnostics into the output directory", func() {
		dir := GinkgoT().TempDir()
		pods := testing.FakePods(1, testing.Namespace, testing.InstanceName)
		secrets := testing.FakeSecrets(testing.Namespace, testing.InstanceName)
		events := testing.FakeEvents()
		o := &options{
			IOStreams:  streams,
			namespaces: []string{testing.Namespace},
			outputDir:  dir,
			gvrs:       []schema.GroupVersionResource{types.ThingGVR()},
			client: &kube.Client{
				ClientSet: testing.FakeClientSet(&pods.Items[0], &events.Items[0], &events.Items[1]),
				Dynamic: testing.FakeDynamicClient(
					testing.FakeNamespace(testing.Namespace),
					&pods.Items[0],
					&secrets.Items[0],
					testing.FakeThing(testing.InstanceName, testing.Namespace),
				),
			},
		}
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("Diagnostics written to " + dir))
		Expect(out.String()).Should(ContainSubstring("Warning Events:"))
		Expect(out.String()).Should(ContainSubstring("FailedScheduling"))

		data, err := os.ReadFile(filepath.Join(dir, testing.Namespace+"_ns.log"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(data)).Should(ContainSubstring(testing.Namespace))

		data, err = os.ReadFile(filepath.Join(dir, testing.Namespace+"_secrets.log"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(data)).Should(ContainSubstring("<redacted>"))

		data, err = os.ReadFile(filepath.Join(dir, testing.Namespace+"_things.log"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(data)).Should(ContainSubstring(testing.InstanceName))

		data, err = os.ReadFile(filepath.Join(dir, testing.Namespace+"-pod_"+pods.Items[0].Name+".log"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(data)).Should(ContainSubstring("fake logs"))
	})

	It("keeps going when a namespace cannot be fully collected", func() {
		dir := GinkgoT().TempDir()
		dynamicClient := testing.FakeDynamicClient(testing.FakeNamespace(testing.Namespace))
		dynamicClient.PrependReactor("list", "secrets",
			func(action clientgotesting.Action) (bool, runtime.Object, error) {
				return true, nil, fmt.Errorf("boom")
			})
		o := &options{
			IOStreams:  streams,
			namespaces: []string{testing.Namespace},
			outputDir:  dir,
			client: &kube.Client{
				ClientSet: testing.FakeClientSet(),
				Dynamic:   dynamicClient,
			},
		}
		Expect(o.run()).Should(Succeed())
		Expect(out.String()).Should(ContainSubstring("boom"))
		Expect(out.String()).Should(ContainSubstring("Diagnostics written to " + dir))
	})
})
