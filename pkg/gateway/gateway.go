// Package gateway provides the public API for embedding the webhook gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/deploywatch/internal/runtime"
)

// Gateway verifies inbound email webhooks and forwards them to the
// execution backend. See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	WithLogger = runtime.WithLogger

	// Collaborator overrides
	WithContentFetcher = runtime.WithContentFetcher
	WithForwarder      = runtime.WithForwarder
	WithLedger         = runtime.WithLedger
	WithDeliveryStore  = runtime.WithDeliveryStore
	WithEventPublisher = runtime.WithEventPublisher
	WithAlerter        = runtime.WithAlerter
)
