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
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-password/password"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	namespacePrefix = "ns-"

	// createAttempts bounds the retries on name collision
	createAttempts = 5
)

// RandomSuffix returns a random lowercase alphanumeric string suitable for
// object name suffixes.
func RandomSuffix() string {
	seq, _ := password.Generate(6, 2, 0, true, true)
	return seq
}

// CreateNamespace creates the named namespace labeled as a harness object.
func (c *Client) CreateNamespace(ctx context.Context, name string) (*corev1.Namespace, error) {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{TestObjectLabelKey: "true"},
		},
	}
	created, err := c.ClientSet.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create namespace %s", name)
	}
	return created, nil
}

// CreateUniqueNamespace creates a namespace with a generated unique name and
// returns the name. Name collisions are retried with a fresh suffix.
func (c *Client) CreateUniqueNamespace(ctx context.Context) (string, error) {
	var lastErr error
	for i := 0; i < createAttempts; i++ {
		name := namespacePrefix + RandomSuffix()
		if _, err := c.CreateNamespace(ctx, name); err != nil {
			if apierrors.IsAlreadyExists(errors.Cause(err)) {
				lastErr = err
				continue
			}
			return "", err
		}
		return name, nil
	}
	return "", errors.Wrap(lastErr, "exhausted attempts to create a unique namespace")
}

// CreateUniqueNamespaces creates count namespaces with generated unique names.
func (c *Client) CreateUniqueNamespaces(ctx context.Context, count int) ([]string, error) {
	namespaces := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name, err := c.CreateUniqueNamespace(ctx)
		if err != nil {
			return namespaces, err
		}
		namespaces = append(namespaces, name)
	}
	return namespaces, nil
}

// DeleteNamespace deletes the named namespace, tolerating a namespace that is
// already gone.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	err := c.ClientSet.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "failed to delete namespace %s", name)
	}
	return nil
}

// WaitForNamespaceTerminated polls until the named namespace is fully gone.
// A namespace lingering in Terminating counts as present.
func (c *Client) WaitForNamespaceTerminated(ctx context.Context, name string, timeout time.Duration) error {
	err := wait.PollImmediateWithContext(ctx, 2*time.Second, timeout,
		func(ctx context.Context) (bool, error) {
			_, err := c.ClientSet.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return false, nil
		})
	return errors.Wrapf(err, "namespace %s was not terminated", name)
}
