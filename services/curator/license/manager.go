// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/Curator/services/curator/model"
	"github.com/AleutianAI/Curator/services/curator/store"
)

// Manager changes license assignments and keeps resolved licenses
// consistent with them.
//
// Thread Safety:
//
//	Manager is safe for concurrent use. Concurrent changes to the same
//	object are not serialized; the last write wins.
type Manager struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewManager creates a manager that shares the resolver's collaborators.
func NewManager(resolver *Resolver) *Manager {
	return &Manager{resolver: resolver, logger: resolver.logger}
}

// Resolver returns the resolver the manager keeps consistent.
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

// ClearAssignment ends the assignments attached to id.
//
// Description:
//
//	Sets DateEnd to now on every active assignment of id, or on every
//	assignment if clearAll is set, and persists each one. Then the resolved
//	license of id and of every descendant of id is invalidated.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	id - Universal id of the object.
//	clearAll - End inactive assignments too.
//	opts - WithDatabase to compute descendants from a built graph database.
//
// Outputs:
//
//	int - Number of assignments ended.
//	error - Non-nil if the store or the descendant traversal failed.
func (m *Manager) ClearAssignment(ctx context.Context, id int64, clearAll bool, opts ...CallOption) (int, error) {
	ctx, span := startLicenseSpan(ctx, "ClearAssignment", id)
	defer span.End()

	cleared, err := m.clear(ctx, id, clearAll)
	if err == nil {
		err = m.invalidate(ctx, id, applyCallOptions(opts))
	}
	span.SetAttributes(attribute.Int("license.cleared", cleared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cleared, err
	}
	return cleared, nil
}

func (m *Manager) clear(ctx context.Context, id int64, clearAll bool) (int, error) {
	r := m.resolver
	assignments, err := r.store.ListLicenseAssignments(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("listing license assignments of %d: %w", id, err)
	}

	now := r.options.Clock()
	cleared := 0
	for _, a := range assignments {
		if !clearAll && !a.IsActive(now) {
			continue
		}
		end := now
		a.DateEnd = &end
		if err := r.store.UpdateLicenseAssignment(ctx, a); err != nil {
			recordAssignmentChange(ctx, "ended", cleared)
			return cleared, fmt.Errorf("ending license assignment %d: %w", a.ID, err)
		}
		cleared++
	}
	recordAssignmentChange(ctx, "ended", cleared)
	if cleared > 0 {
		m.logger.Info("license assignments ended",
			slog.Int64("id", id),
			slog.Int("count", cleared),
			slog.Bool("clear_all", clearAll),
		)
	}
	return cleared, nil
}

// invalidate drops the resolved license of id and all its descendants.
func (m *Manager) invalidate(ctx context.Context, id int64, call CallOptions) error {
	r := m.resolver
	r.licenses.SetResolution(id, nil)
	below, err := r.descendants(ctx, id, call)
	if err != nil {
		return fmt.Errorf("collecting descendants of %d: %w", id, err)
	}
	r.licenses.InvalidateResolutions(ctx, below...)
	recordInvalidated(ctx, len(below)+1)
	return nil
}

// SetAssignment makes licenseID the license attached to id.
//
// Description:
//
//	Ends the active assignments of id (see ClearAssignment). If the window
//	[start, end) is active now, a new assignment is created and the
//	resolved license of id is set to it directly. A window that is not
//	active now creates nothing and returns (nil, nil).
//
// Inputs:
//
//	ctx - Context for cancellation.
//	id - Universal id of the object.
//	licenseID - License to attach.
//	start, end - Optional window bounds.
//	opts - WithDatabase to compute descendants from a built graph database.
//
// Outputs:
//
//	*model.LicenseAssignment - The created assignment, or nil.
//	error - ErrLicenseNotFound for an unknown license, or a store failure.
func (m *Manager) SetAssignment(ctx context.Context, id, licenseID int64, start, end *time.Time, opts ...CallOption) (*model.LicenseAssignment, error) {
	ctx, span := startLicenseSpan(ctx, "SetAssignment", id)
	defer span.End()
	span.SetAttributes(attribute.Int64("license.id", licenseID))
	r := m.resolver

	lic, err := r.licenses.License(ctx, licenseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %d", ErrLicenseNotFound, licenseID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if _, err := m.ClearAssignment(ctx, id, false, opts...); err != nil {
		return nil, err
	}

	if !model.WindowActive(start, end, r.options.Clock()) {
		m.logger.Info("license window not active, no assignment created",
			slog.Int64("id", id),
			slog.Int64("license_id", licenseID),
		)
		return nil, nil
	}

	soID := id
	a := &model.LicenseAssignment{
		LicenseID:      licenseID,
		SystemObjectID: &soID,
		DateStart:      start,
		DateEnd:        end,
	}
	if err := r.store.CreateLicenseAssignment(ctx, a); err != nil {
		err = fmt.Errorf("creating license assignment on %d: %w", id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	recordAssignmentChange(ctx, "created", 1)

	r.licenses.SetResolution(id, &model.LicenseResolution{
		License:    lic,
		Assignment: a,
		Source:     id,
	})
	m.logger.Info("license assigned",
		slog.Int64("id", id),
		slog.Int64("license_id", licenseID),
		slog.Int64("assignment_id", a.ID),
	)
	return a, nil
}
