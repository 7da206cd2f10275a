// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package api is the operator HTTP surface of the serve mode.

Routes:

	GET  /api/v1/health/live                      process is up
	GET  /api/v1/health/ready                     HR reachable
	GET  /api/v1/cycles/last                      latest cycle outcome
	POST /api/v1/cycles/trigger                   run a cycle now (409 while one runs)
	POST /api/v1/employees/{employeeID}/cleanup   clean one Left employee (?dry_run=true)
	GET  /api/v1/tracking                         processed Left employees
	GET  /api/v1/audit                            operator action trail (?type=&target=&limit=&format=cef)
	GET  /metrics                                 Prometheus

Every response except /metrics uses the models.APIResponse envelope.
Requests are rate limited per client IP with httprate.
*/
package api
