// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lens

import "errors"

// Sentinel errors for the lens service.
var (
	// ErrEmptyWorkflow indicates the request carried no workflow bytes.
	ErrEmptyWorkflow = errors.New("workflow is empty")

	// ErrWorkflowTooLarge indicates the workflow exceeds the configured
	// size limit.
	ErrWorkflowTooLarge = errors.New("workflow exceeds size limit")

	// ErrInvalidWorkflow indicates the workflow bytes are not valid JSON.
	ErrInvalidWorkflow = errors.New("workflow is not valid JSON")

	// ErrStoreNotConfigured indicates no document store is attached to the
	// service.
	ErrStoreNotConfigured = errors.New("document store not configured")
)
