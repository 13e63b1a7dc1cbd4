package controllers

import (
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/disputes"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/payments"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/pricing"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/ratelimit"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/transfers"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/webhookledger"
)

// Deps carries the services the HTTP layer delegates to. Assembled once in
// main and handed to Setup before routes are installed.
type Deps struct {
	Ledger    *webhookledger.Service
	Disputes  *disputes.Service
	Transfers *transfers.Service
	Pricing   *pricing.Service
	Limiter   *ratelimit.Limiter
	Registrar registrar.Client
	Payments  payments.Client
}

var deps Deps

// Setup wires the controller package to its services.
func Setup(d Deps) {
	deps = d
}
