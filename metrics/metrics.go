package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder counts pipeline outcomes as OpenTelemetry metrics exported in
// Prometheus format. The pipeline itself keeps no state between requests,
// so everything here is a plain counter incremented as deliveries flow
// through. Each Recorder owns a private Prometheus registry.
type Recorder struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry

	deliveriesReceived     metric.Int64Counter
	deliveriesUnauthorized metric.Int64Counter
	deliveriesUnverified   metric.Int64Counter
	identityResolutions    metric.Int64Counter
	identityUnresolved     metric.Int64Counter
	grants                 metric.Int64Counter
}

// NewRecorder creates a metrics recorder with a Prometheus exporter
func NewRecorder() (*Recorder, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	meter := meterProvider.Meter(
		"repogate",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	r := &Recorder{
		meterProvider: meterProvider,
		registry:      registry,
	}

	if err := r.registerInstruments(meter); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return r, nil
}

// registerInstruments creates and registers all metric instruments
func (r *Recorder) registerInstruments(meter metric.Meter) error {
	var err error

	r.deliveriesReceived, err = meter.Int64Counter(
		"payment.webhook.deliveries",
		metric.WithDescription("Webhook deliveries received, by event type"),
		metric.WithUnit("{deliveries}"),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries counter: %w", err)
	}

	r.deliveriesUnauthorized, err = meter.Int64Counter(
		"payment.webhook.unauthorized",
		metric.WithDescription("Webhook deliveries rejected for a missing or invalid signature"),
		metric.WithUnit("{deliveries}"),
	)
	if err != nil {
		return fmt.Errorf("creating unauthorized counter: %w", err)
	}

	r.deliveriesUnverified, err = meter.Int64Counter(
		"payment.webhook.unverified",
		metric.WithDescription("Webhook deliveries accepted without signature verification (no secret configured)"),
		metric.WithUnit("{deliveries}"),
	)
	if err != nil {
		return fmt.Errorf("creating unverified counter: %w", err)
	}

	r.identityResolutions, err = meter.Int64Counter(
		"payment.identity.resolutions",
		metric.WithDescription("Purchasers resolved to a platform account, by source"),
		metric.WithUnit("{resolutions}"),
	)
	if err != nil {
		return fmt.Errorf("creating resolutions counter: %w", err)
	}

	r.identityUnresolved, err = meter.Int64Counter(
		"payment.identity.unresolved",
		metric.WithDescription("Purchasers that could not be resolved to a platform account"),
		metric.WithUnit("{resolutions}"),
	)
	if err != nil {
		return fmt.Errorf("creating unresolved counter: %w", err)
	}

	r.grants, err = meter.Int64Counter(
		"payment.access.grants",
		metric.WithDescription("Repository access grant attempts, by outcome"),
		metric.WithUnit("{grants}"),
	)
	if err != nil {
		return fmt.Errorf("creating grants counter: %w", err)
	}

	return nil
}

// DeliveryReceived counts a parsed delivery by event type
func (r *Recorder) DeliveryReceived(ctx context.Context, eventType string) {
	r.deliveriesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
	))
}

// DeliveryUnauthorized counts a rejected delivery
func (r *Recorder) DeliveryUnauthorized(ctx context.Context) {
	r.deliveriesUnauthorized.Add(ctx, 1)
}

// DeliveryUnverified counts a delivery accepted through the no-secret
// escape hatch. This must stay observable: an unverified deployment should
// be visible on a dashboard, not discovered during an incident.
func (r *Recorder) DeliveryUnverified(ctx context.Context) {
	r.deliveriesUnverified.Add(ctx, 1)
}

// IdentityResolved counts a successful resolution by source
func (r *Recorder) IdentityResolved(ctx context.Context, source string) {
	r.identityResolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("identity.source", source),
	))
}

// IdentityUnresolved counts a purchase with no resolvable account
func (r *Recorder) IdentityUnresolved(ctx context.Context) {
	r.identityUnresolved.Add(ctx, 1)
}

// Grant counts an access grant attempt
func (r *Recorder) Grant(ctx context.Context, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.grants.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant.outcome", outcome),
	))
}

// Handler serves the recorder's registry in Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r.meterProvider != nil {
		return r.meterProvider.Shutdown(ctx)
	}
	return nil
}
