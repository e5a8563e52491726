// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import "errors"

var (
	// ErrNilBundle means Publish was handed no analysis document.
	ErrNilBundle = errors.New("nil analysis bundle")

	// ErrNoBucket means the GCS publisher was built without a bucket.
	ErrNoBucket = errors.New("gcs bucket is required")

	// ErrNotConfigured means the influx sink is missing its URL, org or
	// bucket.
	ErrNotConfigured = errors.New("influx sink is not configured")
)
