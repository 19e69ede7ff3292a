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
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
	k8stesting "k8s.io/client-go/testing"

	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/kube"
)

type fakeExecutor struct {
	payload []byte
	urls    []*url.URL
}

func (f *fakeExecutor) Execute(ctx context.Context, url *url.URL, config *rest.Config, stdout, stderr io.Writer) error {
	f.urls = append(f.urls, url)
	_, err := stdout.Write(f.payload)
	return err
}

var _ = Describe("volume archiving", func() {
	const namespace = "diag-test"

	It("streams a tar of every claim through a helper pod", func() {
		dir := GinkgoT().TempDir()

		clientSet := k8sfake.NewSimpleClientset(
			&corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: "data-demo-0"}})
		// helper pods come up Running right away
		clientSet.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
			pod := action.(k8stesting.CreateAction).GetObject().(*corev1.Pod)
			pod.Status.Phase = corev1.PodRunning
			return false, nil, nil
		})

		executor := &fakeExecutor{payload: []byte("tar-stream")}
		collector := New(&kube.Client{
			Config:    &rest.Config{Host: "https://127.0.0.1:6443"},
			ClientSet: clientSet,
		}, logr.Discard(), Options{
			Dir:            dir,
			ArchiveTimeout: metav1.Duration{Duration: time.Second},
			Policy: checks.Policy{
				Delay:    time.Millisecond,
				Interval: 5 * time.Millisecond,
				Timeout:  200 * time.Millisecond,
			},
		})
		collector.Exec = executor

		Expect(collector.ArchivePersistentVolumes(ctx, namespace)).Should(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, namespace+"-pv_data-demo-0.tar"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(data)).Should(Equal("tar-stream"))

		Expect(executor.urls).Should(HaveLen(1))
		Expect(executor.urls[0].Path).Should(ContainSubstring("/namespaces/" + namespace + "/pods/"))
		Expect(executor.urls[0].Path).Should(HaveSuffix("/exec"))
		Expect(executor.urls[0].RawQuery).Should(ContainSubstring("command=tar"))

		// the helper pod must not survive the copy
		pods, err := clientSet.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(pods.Items).Should(BeEmpty())
	})

	It("surfaces a helper pod that never runs without aborting the round", func() {
		dir := GinkgoT().TempDir()

		clientSet := k8sfake.NewSimpleClientset(
			&corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: "data-demo-0"}})

		collector := New(&kube.Client{
			Config:    &rest.Config{Host: "https://127.0.0.1:6443"},
			ClientSet: clientSet,
		}, logr.Discard(), Options{
			Dir:            dir,
			ArchiveTimeout: metav1.Duration{Duration: 100 * time.Millisecond},
			Policy: checks.Policy{
				Delay:    time.Millisecond,
				Interval: 5 * time.Millisecond,
				Timeout:  50 * time.Millisecond,
			},
		})
		collector.Exec = &fakeExecutor{}

		err := collector.ArchivePersistentVolumes(ctx, namespace)
		Expect(err).Should(HaveOccurred())
		Expect(err.Error()).Should(ContainSubstring("never ran"))
		Expect(filepath.Join(dir, namespace+"-pv_data-demo-0.tar")).ShouldNot(BeAnExistingFile())
	})
})
