// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

//go:build integration

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/eventsource/...
//
// # MongoDB
//
// MongoContainer runs a stock mongo image and exposes a connection URI:
//
//	func TestStream(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    mongo, err := testinfra.NewMongoContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, mongo)
//
//	    src, err := eventsource.Dial(ctx, &config.MongoConfig{URI: mongo.URI, ...})
//	}
//
// Tests skip cleanly when Docker is not available.
package testinfra
