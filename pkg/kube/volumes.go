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
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// AssociatedPersistentVolumes returns the persistent volumes that belong to a
// test namespace. PVs are cluster-scoped, the association runs through the
// claim refs pointing into the namespace and through the instance label values
// found on the namespace's claims.
func AssociatedPersistentVolumes(ctx context.Context, client *Client, namespace, instanceLabelKey string) ([]corev1.PersistentVolume, error) {
	if instanceLabelKey == "" {
		instanceLabelKey = InstanceLabelKey
	}

	claims, err := client.ClientSet.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list claims in namespace %s", namespace)
	}

	instances := map[string]bool{}
	for _, claim := range claims.Items {
		if v, ok := claim.Labels[instanceLabelKey]; ok && v != "" {
			instances[v] = true
		}
	}

	pvs, err := client.ClientSet.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list persistent volumes")
	}

	var matched []corev1.PersistentVolume
	for _, pv := range pvs.Items {
		if ref := pv.Spec.ClaimRef; ref != nil && ref.Namespace == namespace {
			matched = append(matched, pv)
			continue
		}
		if v, ok := pv.Labels[instanceLabelKey]; ok && instances[v] {
			matched = append(matched, pv)
		}
	}
	return matched, nil
}
