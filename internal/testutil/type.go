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

package testutil

import (
	"context"

	"github.com/sethvargo/go-password/password"
	"github.com/spf13/viper"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/apecloud/optest/pkg/kube"
)

const envUseExistingCluster = "USE_EXISTING_CLUSTER"

// TestContext creates test objects labeled so the cleanup pass can recognize
// them later.
type TestContext struct {
	Cli              client.Client
	TestObjLabelKey  string
	DefaultNamespace string
}

func NewDefaultTestContext(cli client.Client) TestContext {
	return TestContext{
		Cli:              cli,
		TestObjLabelKey:  kube.TestObjectLabelKey,
		DefaultNamespace: "default",
	}
}

// CreateObj labels the object as a test object and creates it.
func (testCtx TestContext) CreateObj(ctx context.Context, obj client.Object, opts ...client.CreateOption) error {
	l := obj.GetLabels()
	if l == nil {
		l = map[string]string{}
	}
	l[testCtx.TestObjLabelKey] = "true"
	obj.SetLabels(l)
	return testCtx.Cli.Create(ctx, obj, opts...)
}

// CheckedCreateObj is CreateObj tolerating objects that already exist.
func (testCtx TestContext) CheckedCreateObj(ctx context.Context, obj client.Object, opts ...client.CreateOption) error {
	if err := testCtx.CreateObj(ctx, obj, opts...); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// GetRandomStr returns a random lowercase alphanumeric string usable as a
// name suffix.
func (testCtx TestContext) GetRandomStr() string {
	seq, _ := password.Generate(6, 2, 0, true, true)
	return seq
}

// UsingExistingCluster reports whether the suite should run against the
// cluster from the environment instead of a private control plane.
func UsingExistingCluster() bool {
	return viper.GetBool(envUseExistingCluster)
}

func (testCtx TestContext) UsingExistingCluster() bool {
	return UsingExistingCluster()
}
