/*
Copyright 2022 The OpTest Authors

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

package version

import (
	goversion "github.com/hashicorp/go-version"
)

// Version is the release version, set at build time from "git describe --tags"
var Version = "edge"

// BuildDate is the binary build date
var BuildDate string

// GitCommit is the git commit ID the binary was built from
var GitCommit string

// GitVersion is the git version tag
var GitVersion string

// MinimumKubeVersion is the oldest Kubernetes server version the harness supports
var MinimumKubeVersion = goversion.Must(goversion.NewVersion("1.20.0"))

// GetVersion returns the release version, or a dev placeholder for plain
// go build binaries.
func GetVersion() string {
	if len(Version) == 0 {
		return "v1-dev"
	}
	return Version
}
