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

package util

import (
	"context"
	"regexp"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

type K8sProvider string

const (
	EKSProvider     K8sProvider = "EKS"
	GKEProvider     K8sProvider = "GKE"
	AKSProvider     K8sProvider = "AKS"
	ACKProvider     K8sProvider = "ACK"
	TKEProvider     K8sProvider = "TKE"
	UnknownProvider K8sProvider = "unknown"
)

func (p K8sProvider) IsCloud() bool {
	return p != UnknownProvider
}

// Managed distributions tag the server GitVersion, e.g. v1.24.10-eks-48e63af
// or v1.24.9-gke.3200. AKS reports a plain upstream version, it is only
// recognizable from the node provider IDs.
var versionPatterns = []struct {
	provider K8sProvider
	pattern  *regexp.Regexp
}{
	{EKSProvider, regexp.MustCompile(`v.*-eks-.*`)},
	{GKEProvider, regexp.MustCompile(`v.*-gke.*`)},
	{ACKProvider, regexp.MustCompile(`v.*-aliyun.*`)},
	{TKEProvider, regexp.MustCompile(`v.*-tke.*`)},
}

// providerIDSchemes maps the scheme of node.spec.providerID to the provider.
var providerIDSchemes = map[string]K8sProvider{
	"aws":    EKSProvider,
	"azure":  AKSProvider,
	"gce":    GKEProvider,
	"qcloud": TKEProvider,
}

// GetK8sProvider detects the cluster's provider, first from the server
// version string, then from the node provider IDs.
func GetK8sProvider(version string, client kubernetes.Interface) (K8sProvider, error) {
	if provider := GetK8sProviderFromVersion(version); provider != UnknownProvider {
		return provider, nil
	}

	nodes, err := client.CoreV1().Nodes().List(context.Background(), metav1.ListOptions{})
	if err != nil {
		return UnknownProvider, err
	}
	return GetK8sProviderFromNodes(nodes), nil
}

// GetK8sProviderFromNodes gets the provider from node.spec.providerID
func GetK8sProviderFromNodes(nodes *corev1.NodeList) K8sProvider {
	for _, node := range nodes.Items {
		scheme, _, found := strings.Cut(node.Spec.ProviderID, ":")
		if !found {
			continue
		}
		if provider, ok := providerIDSchemes[scheme]; ok {
			return provider
		}
	}
	return UnknownProvider
}

// GetK8sProviderFromVersion gets the provider from the server GitVersion
func GetK8sProviderFromVersion(version string) K8sProvider {
	for _, p := range versionPatterns {
		if p.pattern.MatchString(version) {
			return p.provider
		}
	}
	return UnknownProvider
}
