// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package hrclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// CheckinTimestampLayout is the timestamp format the checkin method expects.
const CheckinTimestampLayout = "2006-01-02 15:04:05"

// checkinPath returns the add-log method path. The doctype moved from the
// erpnext app to hrms after version 13.
func (c *Client) checkinPath() string {
	app := "hrms"
	if c.version > 0 && c.version <= 13 {
		app = "erpnext"
	}
	return "/api/method/" + app + ".hr.doctype.employee_checkin.employee_checkin.add_log_based_on_employee_field"
}

type checkinRequest struct {
	EmployeeFieldValue string `json:"employee_field_value"`
	Timestamp          string `json:"timestamp"`
	DeviceID           string `json:"device_id,omitempty"`
}

// AddCheckin submits one punch keyed by the device user id. It returns the
// created checkin name, or ErrDuplicate when HR already has the punch.
func (c *Client) AddCheckin(ctx context.Context, deviceUserID string, ts time.Time, deviceLabel string) (string, error) {
	resp, err := c.do(ctx, "checkin", http.MethodPost, c.checkinPath(), nil, checkinRequest{
		EmployeeFieldValue: deviceUserID,
		Timestamp:          ts.Format(CheckinTimestampLayout),
		DeviceID:           deviceLabel,
	})
	if err != nil {
		return "", err
	}

	if resp.ok() {
		var out struct {
			Message struct {
				Name string `json:"name"`
			} `json:"message"`
		}
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return "", fmt.Errorf("decode checkin response: %w", err)
		}
		return out.Message.Name, nil
	}

	msg := errorMessage(resp.body)
	if strings.Contains(strings.ToLower(string(resp.body)), "already has a log") {
		return "", fmt.Errorf("%w: %s", ErrDuplicate, msg)
	}
	return "", fmt.Errorf("checkin %s at %s: status %d: %s", deviceUserID, ts.Format(CheckinTimestampLayout), resp.status, msg)
}
