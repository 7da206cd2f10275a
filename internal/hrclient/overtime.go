// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package hrclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/models"
)

const (
	otDoctype       = "Overtime Registration"
	otDetailDoctype = "Overtime Registration Detail"
	otNamingSeries  = "OTR-.YY..MM..DD.-.####."
)

// OTExists reports whether a registration named requestNo already exists.
func (c *Client) OTExists(ctx context.Context, requestNo string) (bool, error) {
	resp, err := c.do(ctx, "ot_exists", http.MethodGet, resourcePath(otDoctype, requestNo), nil, nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.ok():
		return true, nil
	case resp.status == http.StatusNotFound:
		return false, nil
	default:
		return false, statusError("ot_exists", resp)
	}
}

// OTConflict reports whether the employee already has a registration detail
// on the same date with the same begin and end time.
func (c *Client) OTConflict(ctx context.Context, d models.OTDetail) (bool, error) {
	filters, _ := json.Marshal([][]string{
		{"employee", "=", d.EmployeeID},
		{"date", "=", d.Date},
	})
	fields, _ := json.Marshal([]string{"parent", "employee", "date", "begin_time", "end_time"})
	q := url.Values{}
	q.Set("filters", string(filters))
	q.Set("fields", string(fields))
	q.Set("limit_page_length", "0")

	resp, err := c.do(ctx, "ot_conflict", http.MethodGet, resourcePath(otDetailDoctype), q, nil)
	if err != nil {
		return false, err
	}
	if !resp.ok() {
		return false, statusError("ot_conflict", resp)
	}

	var out struct {
		Data []struct {
			BeginTime string `json:"begin_time"`
			EndTime   string `json:"end_time"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return false, fmt.Errorf("decode ot_conflict: %w", err)
	}
	for _, row := range out.Data {
		if row.BeginTime == d.BeginTime && row.EndTime == d.EndTime {
			return true, nil
		}
	}
	return false, nil
}

type otDocument struct {
	Doctype       string            `json:"doctype"`
	Name          string            `json:"name"`
	ReasonGeneral string            `json:"reason_general"`
	NamingSeries  string            `json:"naming_series"`
	RequestDate   string            `json:"request_date"`
	Employees     []models.OTDetail `json:"ot_employees"`
}

// CreateOT inserts one registration with its detail rows.
func (c *Client) CreateOT(ctx context.Context, reg models.OTRegistration) error {
	doc := otDocument{
		Doctype:       otDoctype,
		Name:          reg.RequestNo,
		ReasonGeneral: "Sync from MongoDB: Request number: " + reg.RequestNo,
		NamingSeries:  otNamingSeries,
		RequestDate:   reg.RequestDate,
		Employees:     reg.Details,
	}
	resp, err := c.do(ctx, "ot_create", http.MethodPost, resourcePath(otDoctype), nil, doc)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return statusError("ot_create", resp)
	}
	return nil
}
