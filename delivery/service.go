package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hookrelay/hookrelay/delivery/signature"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/telemetry"
)

/* Processor is the webhook processing pipeline:
 * secret -> signature -> duplicate check -> persist -> route,
 * all inside one unit-of-work. Persistence failures fail the call;
 * handler failures do not, because the delivery has already been
 * durably accepted by the time handlers run.
 */

// UseCase defines the pipeline operation consumed by adapters.
type UseCase interface {
	Process(ctx context.Context, cmd ProcessCommand) error
}

type Processor struct {
	secrets SecretSource
	store   Store
	uow     UnitOfWork
	router  Router
	clock   Clock
	metrics *telemetry.Recorder
}

// NewProcessor creates the pipeline with dependency injection.
func NewProcessor(secrets SecretSource, store Store, uow UnitOfWork, router Router, clock Clock, metrics *telemetry.Recorder) *Processor {
	return &Processor{
		secrets: secrets,
		store:   store,
		uow:     uow,
		router:  router,
		clock:   clock,
		metrics: metrics,
	}
}

// Process runs the pipeline for one inbound delivery.
//
// Returns nil for both first-time processing and redelivery of an
// already-processed id; redelivery is always safe and never re-invokes
// handlers.
func (p *Processor) Process(ctx context.Context, cmd ProcessCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	event := cmd.EventName.String()
	p.metrics.Received(ctx, event)
	start := p.clock.Now()

	err := p.uow.Execute(ctx, func(ctx context.Context) error {
		return p.process(ctx, cmd)
	})

	p.metrics.ObserveDuration(ctx, event, p.clock.Now().Sub(start))

	if err != nil {
		if fault.CodeOf(err) == fault.CodeSignatureInvalid {
			p.metrics.SignatureInvalid(ctx, event)
		} else {
			p.metrics.ProcessingFailed(ctx, event)
		}
		return err
	}
	return nil
}

func (p *Processor) process(ctx context.Context, cmd ProcessCommand) error {
	event := cmd.EventName.String()

	// The signature check runs before any storage access so that
	// unauthenticated callers learn nothing about known delivery ids.
	ctx, span := p.metrics.StartSpan(ctx, "webhook.validate_signature",
		attribute.String("delivery.id", cmd.DeliveryID.String()),
		attribute.String("event.name", event),
	)
	secret, err := p.secrets.WebhookSecret(ctx)
	if err != nil {
		span.End()
		return fault.Wrap(fault.CodeSecretUnavailable, fmt.Errorf("fetching webhook secret: %w", err))
	}
	if secret == "" {
		span.End()
		return fault.New(fault.CodeSecretEmpty)
	}
	if !signature.IsValid(cmd.RawPayload, secret, cmd.Signature) {
		span.End()
		return fault.New(fault.CodeSignatureInvalid)
	}
	span.End()

	ctx, span = p.metrics.StartSpan(ctx, "webhook.check_duplicate")
	_, found, err := p.store.Get(ctx, cmd.DeliveryID)
	span.End()
	if err != nil {
		return fault.Wrap(fault.CodeStorageReadFailed, fmt.Errorf("checking for duplicate delivery: %w", err))
	}
	if found {
		p.metrics.Duplicate(ctx, event)
		return nil
	}

	d := Delivery{
		ID:             cmd.DeliveryID,
		EventName:      cmd.EventName,
		ReceivedAt:     p.clock.Now().UTC(),
		Payload:        cmd.Payload,
		InstallationID: cmd.InstallationID,
	}

	ctx, span = p.metrics.StartSpan(ctx, "webhook.save_delivery")
	err = p.store.Save(ctx, d)
	span.End()
	if errors.Is(err, ErrAlreadyProcessed) {
		// A concurrent redelivery won the insert race; the row exists,
		// so this call is a duplicate success.
		p.metrics.Duplicate(ctx, event)
		return nil
	}
	if err != nil {
		return fault.Wrap(fault.CodeStorageWriteFailed, fmt.Errorf("saving delivery: %w", err))
	}

	ctx, span = p.metrics.StartSpan(ctx, "webhook.route_to_handlers")
	if err := p.router.Route(ctx, d); err != nil {
		// Handler failures are the handlers' concern: the delivery is
		// already durable, so they are metered and traced, not returned.
		span.RecordError(err)
		p.metrics.RoutingError(ctx, event)
	}
	span.End()

	p.metrics.Processed(ctx, event)
	return nil
}
