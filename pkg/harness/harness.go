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
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/onsi/ginkgo/v2/types"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/apecloud/optest/pkg/checks"
	"github.com/apecloud/optest/pkg/cleanup"
	"github.com/apecloud/optest/pkg/diagnostics"
	"github.com/apecloud/optest/pkg/kube"
)

// logsDirKey is the viper key (and env var) that points to the diagnostics
// root directory.
const logsDirKey = "LOGS_DIR"

// Harness ties namespace provisioning, diagnostics and cleanup to the suite
// lifecycle. One Harness serves one suite.
type Harness struct {
	client *kube.Client
	log    logr.Logger

	suite            string
	logsRoot         string
	customResources  []schema.GroupVersionResource
	operatorSelector string
	pvArchive        bool
	policy           checks.Policy

	mu         sync.Mutex
	namespaces []string
	started    map[string]time.Time
	suiteStart time.Time
}

// Option customizes a Harness.
type Option func(*Harness)

// WithSuiteName names the suite, the name shows up in banners and in the
// diagnostics directory layout.
func WithSuiteName(name string) Option {
	return func(h *Harness) { h.suite = name }
}

// WithLogger replaces the default controller-runtime logger.
func WithLogger(log logr.Logger) Option {
	return func(h *Harness) { h.log = log }
}

// WithClient injects a prebuilt client, Setup then skips building one.
func WithClient(client *kube.Client) Option {
	return func(h *Harness) { h.client = client }
}

// WithLogsRoot overrides the LOGS_DIR location.
func WithLogsRoot(dir string) Option {
	return func(h *Harness) { h.logsRoot = dir }
}

// WithCustomResources registers the operator resource kinds to collect and
// purge.
func WithCustomResources(gvrs ...schema.GroupVersionResource) Option {
	return func(h *Harness) { h.customResources = append(h.customResources, gvrs...) }
}

// WithOperatorSelector registers the label selector of the operator's
// cluster-scoped RBAC.
func WithOperatorSelector(selector string) Option {
	return func(h *Harness) { h.operatorSelector = selector }
}

// WithPVArchive also archives persistent volume content when collecting.
func WithPVArchive() Option {
	return func(h *Harness) { h.pvArchive = true }
}

// WithPolicy replaces the standard retry policy used for cleanup
// verification.
func WithPolicy(policy checks.Policy) Option {
	return func(h *Harness) { h.policy = policy }
}

// New returns a Harness. Setup must run before namespaces are provisioned.
func New(opts ...Option) *Harness {
	h := &Harness{
		suite:    "optest",
		log:      ctrl.Log.WithName("harness"),
		logsRoot: viper.GetString(logsDirKey),
		policy:   checks.DefaultPolicy(),
		started:  map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logsRoot == "" {
		h.logsRoot = diagnostics.DefaultDir
	}
	return h
}

// Client returns the connected client. Nil before Setup.
func (h *Harness) Client() *kube.Client {
	return h.client
}

// Namespaces returns the namespaces provisioned so far.
func (h *Harness) Namespaces() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.namespaces...)
}

// Setup connects to the cluster, gates on the minimum server version and
// opens the suite. Meant for BeforeSuite.
func (h *Harness) Setup(ctx context.Context) error {
	h.suiteStart = time.Now()
	if h.client == nil {
		config, err := kube.GetConfig()
		if err != nil {
			return err
		}
		if h.client, err = kube.NewClient(config); err != nil {
			return err
		}
	}
	if err := h.client.CheckServerVersion(); err != nil {
		return err
	}
	Banner(h.log, "SUITE %s STARTED", h.suite)
	return nil
}

// ProvisionNamespaces creates n unique test namespaces and records them for
// collection and teardown.
func (h *Harness) ProvisionNamespaces(ctx context.Context, n int) ([]string, error) {
	if h.client == nil {
		return nil, errors.New("harness is not set up")
	}
	namespaces, err := h.client.CreateUniqueNamespaces(ctx, n)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.namespaces = append(h.namespaces, namespaces...)
	h.mu.Unlock()
	return namespaces, nil
}

// StageStarted marks the beginning of a named stage. Meant for BeforeEach or
// the start of an It.
func (h *Harness) StageStarted(name string) {
	h.mu.Lock()
	h.started[name] = time.Now()
	h.mu.Unlock()
	Banner(h.log, "STAGE %s STARTED", name)
}

// StageFinished marks the end of a named stage and logs its duration.
func (h *Harness) StageFinished(name string) {
	h.mu.Lock()
	start, ok := h.started[name]
	delete(h.started, name)
	h.mu.Unlock()
	if !ok {
		Banner(h.log, "STAGE %s FINISHED", name)
		return
	}
	Banner(h.log, "STAGE %s FINISHED in %s", name, time.Since(start).Round(time.Millisecond))
}

// CollectOnFailure dumps diagnostics for every recorded namespace when the
// reported spec failed. Meant for ReportAfterEach.
func (h *Harness) CollectOnFailure(ctx context.Context, report types.SpecReport) error {
	if !report.Failed() || h.client == nil {
		return nil
	}
	dir := filepath.Join(h.logsRoot, h.suite, stageDirName(report.LeafNodeText))
	collector := diagnostics.New(h.client, h.log, diagnostics.Options{
		Dir:             dir,
		CustomResources: h.customResources,
		PVArchive:       h.pvArchive,
		Policy:          h.policy,
	})
	h.log.Info("spec failed, collecting diagnostics", "spec", report.LeafNodeText, "dir", dir)
	return collector.CollectAll(ctx, h.Namespaces())
}

// Teardown cleans up every recorded namespace and verifies nothing remains,
// then closes the suite. Meant for AfterSuite.
func (h *Harness) Teardown(ctx context.Context) error {
	var err error
	if h.client != nil {
		cleaner := cleanup.New(h.client, h.log, cleanup.Options{
			Namespaces:       h.Namespaces(),
			CustomResources:  h.customResources,
			OperatorSelector: h.operatorSelector,
			DeleteNamespaces: true,
			Policy:           h.policy,
		})
		err = cleaner.Run(ctx)
	}
	Banner(h.log, "SUITE %s FINISHED in %s", h.suite, time.Since(h.suiteStart).Round(time.Second))
	return err
}

func stageDirName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
