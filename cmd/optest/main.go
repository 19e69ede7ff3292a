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

package main

import (
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/apecloud/optest/internal/cli/cmd"
)

func main() {
	// Set GOMAXPROCS
	_, _ = maxprocs.Set()

	if err := cmd.NewCliCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
