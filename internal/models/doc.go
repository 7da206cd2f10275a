// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package models holds the data types shared across FingerSync packages:
// HR employees and their fingerprint templates, terminal descriptors,
// tracking records, raw attendance and overtime events, and the HTTP envelope.
//
// Types here carry no behaviour beyond small derived accessors.
package models
