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

package util

import (
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/apecloud/optest/internal/cli/types"
)

var _ = Describe("cli utils", func() {
	newEvent := func(name, eventType string, last time.Time) corev1.Event {
		e := corev1.Event{}
		e.Name = name
		e.Type = eventType
		e.LastTimestamp = metav1.NewTime(last)
		e.InvolvedObject = corev1.ObjectReference{Kind: "Pod", Name: name}
		return e
	}

	It("sorts events of one type by last timestamp", func() {
		base := time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)
		events := &corev1.EventList{Items: []corev1.Event{
			newEvent("late", corev1.EventTypeWarning, base.Add(time.Hour)),
			newEvent("early", corev1.EventTypeWarning, base),
			newEvent("normal", corev1.EventTypeNormal, base.Add(2*time.Hour)),
		}}

		sorted := SortEventsByLastTimestamp(events, corev1.EventTypeWarning)
		Expect(sorted).Should(HaveLen(2))
		Expect(sorted[0].Name).Should(Equal("early"))
		Expect(sorted[1].Name).Should(Equal("late"))
	})

	It("renders event metadata", func() {
		e := newEvent("operator-0", corev1.EventTypeWarning, time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC))
		Expect(GetEventObject(&e)).Should(Equal("Pod/operator-0"))
		Expect(GetEventTimeStr(&e)).Should(ContainSubstring("Jan 04,2023"))
	})

	It("formats zero times as empty", func() {
		Expect(TimeFormat(&metav1.Time{})).Should(Equal(""))
	})

	It("registers klog flags with dash names", func() {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		AddKlogFlags(fs)
		Expect(fs.Lookup("v")).ShouldNot(BeNil())
		Expect(fs.Lookup("add-dir-header")).ShouldNot(BeNil())
	})

	It("builds config flags that silence warnings", func() {
		flags := NewConfigFlagNoWarnings()
		Expect(flags).ShouldNot(BeNil())
		Expect(flags.WrapConfigFn).ShouldNot(BeNil())
	})

	It("parses fully qualified resource arguments", func() {
		gvrs, err := ParseGVRs([]string{"things.v1alpha1.test.optest.apecloud.io", "Routes.v1.route.openshift.io"})
		Expect(err).ShouldNot(HaveOccurred())
		want := []schema.GroupVersionResource{
			{Group: "test.optest.apecloud.io", Version: "v1alpha1", Resource: "things"},
			{Group: "route.openshift.io", Version: "v1", Resource: "routes"},
		}
		Expect(cmp.Diff(want, gvrs)).Should(BeEmpty())

		for _, bad := range []string{"things", "things.v1alpha1"} {
			_, err = ParseGVRs([]string{bad})
			Expect(err).Should(MatchError(ContainSubstring("invalid resource")))
		}
	})

	It("resolves the cli home from the environment", func() {
		dir := GinkgoT().TempDir()
		GinkgoT().Setenv(types.CliHomeEnv, dir)
		home, err := GetCliHomeDir()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(home).Should(Equal(dir))
	})
})
