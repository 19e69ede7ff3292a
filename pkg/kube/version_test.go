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

package kube

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	apiversion "k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

var _ = Describe("server version", func() {
	newClient := func(gitVersion string) *Client {
		clientSet := k8sfake.NewSimpleClientset()
		clientSet.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion =
			&apiversion.Info{GitVersion: gitVersion}
		return &Client{ClientSet: clientSet}
	}

	It("accepts a supported server version", func() {
		client := newClient("v1.26.1")
		v, err := client.ServerVersion()
		Expect(err).Should(Succeed())
		Expect(v).Should(Equal("v1.26.1"))
		Expect(client.CheckServerVersion()).Should(Succeed())
	})

	It("accepts vendor suffixed versions", func() {
		Expect(newClient("v1.24.4+k3s1").CheckServerVersion()).Should(Succeed())
		Expect(newClient("v1.25.0-eks-1234").CheckServerVersion()).Should(Succeed())
	})

	It("rejects an unsupported server version", func() {
		err := newClient("v1.19.16").CheckServerVersion()
		Expect(err).Should(HaveOccurred())
		Expect(err.Error()).Should(ContainSubstring("not supported"))
	})

	It("extracts semantic versions", func() {
		Expect(SemVer("v1.26.1")).Should(Equal("1.26.1"))
		Expect(SemVer("v1.24.4+k3s1")).Should(Equal("1.24.4"))
		Expect(SemVer("v1.25.0-eks-1234")).Should(Equal("1.25.0"))
		Expect(SemVer("")).Should(BeEmpty())
	})
})
