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

package testing

import (
	"io"
	"os"
	"strings"
)

// Capture redirects stdout to a pipe and returns a function that restores
// stdout and returns everything written in between.
func Capture() func() (string, error) {
	r, w, _ := os.Pipe()
	stdout := os.Stdout
	os.Stdout = w

	return func() (string, error) {
		defer func() {
			os.Stdout = stdout
		}()
		if err := w.Close(); err != nil {
			return "", err
		}
		out, err := io.ReadAll(r)
		return string(out), err
	}
}

// ContainExpectStrings returns true if the string contains all the expected
// substrings.
func ContainExpectStrings(s string, expects ...string) bool {
	for _, e := range expects {
		if !strings.Contains(s, e) {
			return false
		}
	}
	return true
}
