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

package types

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	// CliDefaultHome defines optest default home name
	CliDefaultHome = ".optest"
	// CliHomeEnv defines optest home system env
	CliHomeEnv = "OPTEST_HOME"

	// GoosLinux is os.GOOS linux string
	GoosLinux = "linux"
	// GoosDarwin is os.GOOS darwin string
	GoosDarwin = "darwin"
	// GoosWindows is os.GOOS windows string
	GoosWindows = "windows"

	// Group is the api group of the sample custom resource the fakes serve
	Group = "test.optest.apecloud.io"

	// Version is the api version of the sample custom resource
	Version = "v1alpha1"

	// ResourceThings things resource
	ResourceThings = "things"

	// KindThing thing kind
	KindThing = "Thing"
)

func ThingGVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: Group, Version: Version, Resource: ResourceThings}
}
