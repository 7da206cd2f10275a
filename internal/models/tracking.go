// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

// TrackingAction is the action recorded for a processed Left employee.
// The string values are the on-disk format of the tracking file.
type TrackingAction string

const (
	ActionClearedTemplates   TrackingAction = "cleared_templates"
	ActionPermanentlyDeleted TrackingAction = "permanently_deleted"
)

// TrackingDateLayout is the layout of TrackingRecord.ProcessedDate.
const TrackingDateLayout = "2006-01-02"

// TrackingRecord marks one Left employee as already processed.
type TrackingRecord struct {
	Employee      string         `json:"employee"`
	Name          string         `json:"name"`
	DeviceUserID  string         `json:"attendance_device_id"`
	ProcessedDate string         `json:"processed_date"`
	Action        TrackingAction `json:"action"`
}
