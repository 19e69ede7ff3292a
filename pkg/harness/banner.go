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

package harness

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// Banner logs a framed marker so lifecycle transitions stand out in
// interleaved operator and test output.
func Banner(log logr.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	frame := strings.Repeat("#", len(msg)+4)
	log.Info(frame)
	log.Info(fmt.Sprintf("# %s #", msg))
	log.Info(frame)
}
