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
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/pkg/errors"

	"github.com/apecloud/optest/version"
)

// ServerVersion returns the git version string reported by the API server.
func (c *Client) ServerVersion() (string, error) {
	info, err := c.ClientSet.Discovery().ServerVersion()
	if err != nil {
		return "", errors.Wrap(err, "failed to get server version")
	}
	return info.GitVersion, nil
}

// CheckServerVersion fails when the cluster is older than the minimum version
// the harness supports.
func (c *Client) CheckServerVersion() error {
	gitVersion, err := c.ServerVersion()
	if err != nil {
		return err
	}
	semVer := SemVer(gitVersion)
	if semVer == "" {
		return errors.Errorf("failed to parse server version %q", gitVersion)
	}
	v, err := goversion.NewVersion(semVer)
	if err != nil {
		return errors.Wrapf(err, "failed to parse server version %q", gitVersion)
	}
	if v.LessThan(version.MinimumKubeVersion) {
		return errors.Errorf("kubernetes version %s is not supported, at least %s is required",
			gitVersion, version.MinimumKubeVersion)
	}
	return nil
}

// SemVer extracts the plain semantic version from a server git version such as
// v1.24.4+k3s1 or v1.25.0-eks-1234.
func SemVer(gitVersion string) string {
	v := strings.TrimPrefix(gitVersion, "v")
	if idx := strings.IndexAny(v, "-+"); idx > 0 {
		v = v[:idx]
	}
	if v == "" {
		return ""
	}
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			return ""
		}
	}
	return v
}
