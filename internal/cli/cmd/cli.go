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

package cmd

import (
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"
	cmdutil "k8s.io/kubectl/pkg/cmd/util"
	utilcomp "k8s.io/kubectl/pkg/util/completion"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/apecloud/optest/internal/cli/cmd/cleanup"
	"github.com/apecloud/optest/internal/cli/cmd/collect"
	"github.com/apecloud/optest/internal/cli/cmd/options"
	"github.com/apecloud/optest/internal/cli/cmd/version"
	"github.com/apecloud/optest/internal/cli/util"
	"github.com/apecloud/optest/pkg/diagnostics"
)

const (
	cliName = "optest"
)

func init() {
	if _, err := util.GetCliHomeDir(); err != nil {
		fmt.Println("Failed to create optest home dir:", err)
	}
}

func NewCliCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   cliName,
		Short: "Operator test harness CLI.",
		Long: `A command line tool for testing Kubernetes operators against a live cluster.

It cleans up everything a test run leaves behind, verifies the cluster
converged to empty, and collects diagnostics for later debugging.`,

		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	// Flags declared with "_" separators warn when used with hyphens from
	// here on.
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc)

	flags := cmd.PersistentFlags()

	// the kubeconfig flags every kubectl-style tool carries
	kubeConfigFlags := util.NewConfigFlagNoWarnings()
	kubeConfigFlags.AddFlags(flags)
	matchVersionKubeConfigFlags := cmdutil.NewMatchVersionFlags(kubeConfigFlags)
	matchVersionKubeConfigFlags.AddFlags(flags)

	// the klog verbosity flags
	util.AddKlogFlags(flags)

	f := cmdutil.NewFactory(matchVersionKubeConfigFlags)
	ioStreams := genericclioptions.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}

	cmd.AddCommand(
		cleanup.NewCleanupCmd(f, ioStreams),
		collect.NewCollectCmd(f, ioStreams),
		options.NewCmdOptions(ioStreams.Out),
		version.NewVersionCmd(f),
	)

	filters := []string{"options"}
	templates.ActsAsRootCommand(cmd, filters, []templates.CommandGroup{}...)

	utilcomp.SetFactoryForCompletion(f)
	registerCompletionFuncForGlobalFlags(cmd, f)

	cobra.OnInitialize(initConfig, initLogger)
	return cmd
}

// initLogger routes the engine logs through a development zap logger when
// debug logging is on. The subcommands log through klog.Background().
func initLogger() {
	if !viper.GetBool("ENABLE_DEBUG_LOG") {
		return
	}
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	klog.SetLogger(zapr.NewLogger(zapLogger))
}

// initConfig loads the optional config file and the OPTEST_ environment
// variables.
func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(fmt.Sprintf("/etc/%s/", cliName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.%s/", cliName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(cliName)

	viper.SetDefault("LOGS_DIR", diagnostics.DefaultDir)
	viper.SetDefault("ENABLE_DEBUG_LOG", false)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func registerCompletionFuncForGlobalFlags(cmd *cobra.Command, f cmdutil.Factory) {
	completions := map[string]func(toComplete string) []string{
		"namespace": func(toComplete string) []string {
			return utilcomp.CompGetResource(f, cmd, "namespace", toComplete)
		},
		"context": utilcomp.ListContextsInConfig,
		"cluster": utilcomp.ListClustersInConfig,
		"user":    utilcomp.ListUsersInConfig,
	}
	for name, complete := range completions {
		complete := complete
		cmdutil.CheckErr(cmd.RegisterFlagCompletionFunc(name,
			func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				return complete(toComplete), cobra.ShellCompDirectiveNoFileComp
			}))
	}
}
