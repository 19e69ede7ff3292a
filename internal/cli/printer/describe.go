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

package printer

import (
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"

	"github.com/apecloud/optest/internal/cli/util"
)

const NoneString = "<none>"

// PrintAllWarningEvents prints the warning events of the list as a table,
// oldest first.
func PrintAllWarningEvents(events *corev1.EventList, out io.Writer) {
	title := fmt.Sprintf("\n%s Events: ", corev1.EventTypeWarning)
	warnings := util.SortEventsByLastTimestamp(events, corev1.EventTypeWarning)
	if len(warnings) == 0 {
		fmt.Fprintln(out, title+NoneString)
		return
	}

	fmt.Fprintln(out, title)
	tbl := NewTablePrinter(out)
	tbl.SetHeader("TIME", "TYPE", "REASON", "OBJECT", "MESSAGE")
	for _, e := range warnings {
		tbl.AddRow(util.GetEventTimeStr(e), e.Type, e.Reason, util.GetEventObject(e), e.Message)
	}
	tbl.Print()
}
