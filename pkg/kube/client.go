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
	"os"

	"github.com/pkg/errors"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Client bundles the API clients the harness talks to a cluster with.
type Client struct {
	Config     *rest.Config
	ClientSet  kubernetes.Interface
	Dynamic    dynamic.Interface
	CtrlClient ctrlclient.Client
}

// GetConfig loads a rest config from the KUBECONFIG env or the default
// kubeconfig location.
func GetConfig() (*rest.Config, error) {
	kubeConfigPath, exists := os.LookupEnv("KUBECONFIG")
	if !exists {
		kubeConfigPath = os.ExpandEnv("$HOME/.kube/config")
	}
	config, err := clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load kubeconfig")
	}
	return config, nil
}

// NewClient returns a set of ready-to-use API clients for the given config.
func NewClient(config *rest.Config) (*Client, error) {
	clientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build clientset")
	}
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dynamic client")
	}
	ctrlClient, err := ctrlclient.New(config, ctrlclient.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build controller-runtime client")
	}
	return &Client{
		Config:     config,
		ClientSet:  clientSet,
		Dynamic:    dynamicClient,
		CtrlClient: ctrlClient,
	}, nil
}
