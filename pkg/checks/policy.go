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

package checks

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	defaultDelay    = 2 * time.Second
	defaultInterval = 10 * time.Second
	defaultTimeout  = 3 * time.Minute
)

// Policy describes how a condition is polled: an initial delay, a poll
// interval, and an overall timeout.
type Policy struct {
	Delay    time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPolicy returns the standard retry policy used across the harness.
func DefaultPolicy() Policy {
	return Policy{
		Delay:    defaultDelay,
		Interval: defaultInterval,
		Timeout:  defaultTimeout,
	}
}

// Wait sleeps the policy delay and then polls the condition at the policy
// interval until it is satisfied or the timeout expires.
func (p Policy) Wait(ctx context.Context, condition wait.ConditionWithContextFunc) error {
	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return wait.PollImmediateWithContext(ctx, interval, timeout, condition)
}
