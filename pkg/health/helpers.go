// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package health

import (
	"context"
	"fmt"
)

// TrustMapHealthCheck wraps a trust map size accessor: readiness requires at
// least one trusted identity loaded (spec.md §4.10 readiness criteria).
func TrustMapHealthCheck(size func() int) CheckFunc {
	return func(ctx context.Context) error {
		if size() == 0 {
			return fmt.Errorf("trust map is empty")
		}
		return nil
	}
}

// ListenerHealthCheck wraps a synchronous check (e.g. "is the RPC listener
// bound") with ctx-cancellation support, since the check itself has no
// context parameter to honor directly.
func ListenerHealthCheck(fn func() error) CheckFunc {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() { done <- fn() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SinkHealthCheck wraps a context-aware reachability probe for the
// downstream sink (e.g. a bounded-channel depth check or a Postgres mirror
// ping).
func SinkHealthCheck(fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		return fn(ctx)
	}
}

// ServiceHealthCheck wraps a reachability probe for an arbitrary named
// upstream URL.
func ServiceHealthCheck(url string, fn func(ctx context.Context, url string) error) CheckFunc {
	return func(ctx context.Context) error {
		return fn(ctx, url)
	}
}
