// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package hrclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/models"
)

// ModifiedLayout is the HR timestamp format used in filters and the
// user-sync marker file.
const ModifiedLayout = "2006-01-02 15:04:05"

var employeeFields = []string{
	"name", "employee", "employee_name", "attendance_device_id",
	"custom_privilege", "custom_password", "status", "relieving_date", "modified",
}

// flexString accepts a JSON string or number. custom_password is an Int
// field in some HR installs and Data in others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("flexString: %w", err)
	}
	if n == 0 {
		*f = ""
		return nil
	}
	*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

type hrEmployee struct {
	Name               string                       `json:"name"`
	Employee           string                       `json:"employee"`
	EmployeeName       string                       `json:"employee_name"`
	AttendanceDeviceID flexString                   `json:"attendance_device_id"`
	Status             string                       `json:"status"`
	RelievingDate      string                       `json:"relieving_date"`
	CustomPrivilege    string                       `json:"custom_privilege"`
	CustomPassword     flexString                   `json:"custom_password"`
	Modified           string                       `json:"modified"`
	Fingerprints       []models.FingerprintTemplate `json:"custom_fingerprints"`
}

func (e hrEmployee) model() models.Employee {
	emp := models.Employee{
		ID:            e.Name,
		Code:          e.Employee,
		DisplayName:   e.EmployeeName,
		DeviceUserID:  strings.TrimSpace(string(e.AttendanceDeviceID)),
		Status:        models.EmployeeStatus(e.Status),
		RelievingDate: e.RelievingDate,
		Privilege:     models.PrivilegeFromHR(e.CustomPrivilege),
		Password:      string(e.CustomPassword),
	}
	if e.Modified != "" {
		// Frappe appends microseconds; only the second precision matters here.
		s := e.Modified
		if i := strings.IndexByte(s, '.'); i > 0 {
			s = s[:i]
		}
		if t, err := time.ParseInLocation(ModifiedLayout, s, time.Local); err == nil {
			emp.Modified = t
		}
	}
	for _, fp := range e.Fingerprints {
		if !fp.Empty() {
			emp.Templates = append(emp.Templates, fp)
		}
	}
	return emp
}

func (c *Client) listEmployees(ctx context.Context, endpoint string, filters any) ([]models.Employee, error) {
	f, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	fields, _ := json.Marshal(employeeFields)
	q := url.Values{}
	q.Set("filters", string(f))
	q.Set("fields", string(fields))
	q.Set("limit_page_length", "0")

	resp, err := c.do(ctx, endpoint, http.MethodGet, resourcePath("Employee"), q, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, statusError(endpoint, resp)
	}

	var out struct {
		Data []hrEmployee `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	emps := make([]models.Employee, 0, len(out.Data))
	for _, e := range out.Data {
		emps = append(emps, e.model())
	}
	return emps, nil
}

// ListActiveEmployees returns Active employees. With a non-zero since only
// those modified at or after since are returned. Templates are not loaded;
// use GetEmployee for that.
func (c *Client) ListActiveEmployees(ctx context.Context, since time.Time) ([]models.Employee, error) {
	filters := map[string]any{"status": "Active"}
	endpoint := "employees_active"
	if !since.IsZero() {
		filters["modified"] = []string{">=", since.Format(ModifiedLayout)}
		endpoint = "employees_changed"
	}
	return c.listEmployees(ctx, endpoint, filters)
}

// ListLeftEmployees returns Left employees that still carry a device user id.
func (c *Client) ListLeftEmployees(ctx context.Context) ([]models.Employee, error) {
	emps, err := c.listEmployees(ctx, "employees_left", map[string]any{
		"status":               "Left",
		"attendance_device_id": []string{"!=", ""},
	})
	if err != nil {
		return nil, err
	}
	out := emps[:0]
	for _, e := range emps {
		if e.DeviceUserID != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Client) getEmployee(ctx context.Context, employeeID string) (hrEmployee, error) {
	resp, err := c.do(ctx, "employee", http.MethodGet, resourcePath("Employee", employeeID), nil, nil)
	if err != nil {
		return hrEmployee{}, err
	}
	if !resp.ok() {
		return hrEmployee{}, statusError("employee", resp)
	}
	var out struct {
		Data hrEmployee `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return hrEmployee{}, fmt.Errorf("decode employee %s: %w", employeeID, err)
	}
	return out.Data, nil
}

// GetEmployee returns one employee with its enrolled fingerprint templates.
func (c *Client) GetEmployee(ctx context.Context, employeeID string) (models.Employee, error) {
	e, err := c.getEmployee(ctx, employeeID)
	if err != nil {
		return models.Employee{}, err
	}
	return e.model(), nil
}

// DeleteFingerprints removes every Fingerprint Data child record of an
// employee and returns how many were deleted. It stops at the first failure.
func (c *Client) DeleteFingerprints(ctx context.Context, employeeID string) (int, error) {
	e, err := c.getEmployee(ctx, employeeID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, fp := range e.Fingerprints {
		if fp.Name == "" {
			continue
		}
		resp, err := c.do(ctx, "fingerprint_delete", http.MethodDelete, resourcePath("Fingerprint Data", fp.Name), nil, nil)
		if err != nil {
			return deleted, err
		}
		if !resp.ok() && resp.status != http.StatusNotFound {
			return deleted, statusError("fingerprint_delete", resp)
		}
		deleted++
	}
	return deleted, nil
}
