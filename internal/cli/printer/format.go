/*
Copyright ApeCloud, Inc.

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

package printer

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"k8s.io/kubectl/pkg/cmd/util"
)

// Format names an output encoding a command can render.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
	Wide  Format = "wide"
)

func (f Format) String() string {
	return string(f)
}

// IsHumanReadable reports whether the format renders as a table.
func (f Format) IsHumanReadable() bool {
	return f == Table || f == Wide
}

func knownFormats() []Format {
	return []Format{Table, JSON, YAML, Wide}
}

func (f Format) description() string {
	switch f {
	case JSON:
		return "Output result in JSON format"
	case YAML:
		return "Output result in YAML format"
	case Wide:
		return "Output result in human-readable format with more information"
	default:
		return "Output result in human-readable format"
	}
}

// AddOutputFlag registers the -o/--output flag on cmd and binds it to varRef,
// defaulting to the table format.
func AddOutputFlag(cmd *cobra.Command, varRef *Format) {
	*varRef = Table
	names := make([]string, 0, len(knownFormats()))
	for _, f := range knownFormats() {
		names = append(names, f.String())
	}
	cmd.Flags().VarP((*formatValue)(varRef), "output", "o",
		fmt.Sprintf("prints the output in the specified format. Allowed values: %s", strings.Join(names, ", ")))
	util.CheckErr(cmd.RegisterFlagCompletionFunc("output",
		func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			var completions []string
			for _, f := range knownFormats() {
				if strings.HasPrefix(f.String(), toComplete) {
					completions = append(completions, fmt.Sprintf("%s\t%s", f, f.description()))
				}
			}
			return completions, cobra.ShellCompDirectiveNoFileComp
		}))
}

type formatValue Format

func (o *formatValue) String() string {
	return string(*o)
}

func (o *formatValue) Type() string {
	return "format"
}

func (o *formatValue) Set(s string) error {
	if !slices.Contains(knownFormats(), Format(s)) {
		return fmt.Errorf("invalid format type %q", s)
	}
	*o = formatValue(s)
	return nil
}
