package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dm-service/internal/apperr"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

var tracer = otel.Tracer("dm-service/internal/services")

// HeaderPair identifies both headers of one conversation after a send.
type HeaderPair struct {
	SenderHeaderID    string
	RecipientHeaderID string

	senderWrite    repositories.HeaderWrite
	recipientWrite repositories.HeaderWrite
}

// Reconciler keeps both participants' chat headers current on every send.
type Reconciler struct {
	headers repositories.HeaderRepository
	logger  zerolog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(headers repositories.HeaderRepository, logger zerolog.Logger) *Reconciler {
	return &Reconciler{headers: headers, logger: logger}
}

// OnMessageSend upserts the sender-owned header (naming the recipient) and the
// recipient-owned header (naming the sender) concurrently and waits for both.
// If either write fails the other one is undone, unless a later send has
// already overwritten it, and a *apperr.HeaderWriteError is returned.
func (r *Reconciler) OnMessageSend(ctx context.Context, senderID, recipientID, recipientName, senderName, text string) (HeaderPair, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.OnMessageSend")
	defer span.End()
	span.SetAttributes(attribute.String("sender_id", senderID), attribute.String("recipient_id", recipientID))
	start := time.Now()
	defer func() { observability.ObserveReconcile(time.Since(start)) }()

	var pair HeaderPair
	var senderErr, recipientErr error
	var g errgroup.Group
	g.Go(func() error {
		pair.senderWrite, senderErr = r.headers.UpsertHeader(ctx, senderID, recipientID, recipientName, text)
		return senderErr
	})
	g.Go(func() error {
		pair.recipientWrite, recipientErr = r.headers.UpsertHeader(ctx, recipientID, senderID, senderName, text)
		return recipientErr
	})
	_ = g.Wait()
	pair.SenderHeaderID = pair.senderWrite.HeaderID
	pair.RecipientHeaderID = pair.recipientWrite.HeaderID

	switch {
	case senderErr != nil && recipientErr != nil:
		return HeaderPair{}, r.fail(span, errors.Join(
			&apperr.HeaderWriteError{OwnerID: senderID, Err: senderErr},
			&apperr.HeaderWriteError{OwnerID: recipientID, Err: recipientErr},
		))
	case senderErr != nil:
		r.undo(ctx, pair.recipientWrite)
		return HeaderPair{}, r.fail(span, &apperr.HeaderWriteError{OwnerID: senderID, Err: senderErr})
	case recipientErr != nil:
		r.undo(ctx, pair.senderWrite)
		return HeaderPair{}, r.fail(span, &apperr.HeaderWriteError{OwnerID: recipientID, Err: recipientErr})
	}

	r.logger.Debug().
		Str("sender_header_id", pair.SenderHeaderID).
		Str("recipient_header_id", pair.RecipientHeaderID).
		Msg("headers reconciled")
	return pair, nil
}

// Revert undoes both header writes of pair. It is used when the message
// itself could not be stored.
func (r *Reconciler) Revert(ctx context.Context, pair HeaderPair) {
	r.undo(ctx, pair.senderWrite)
	r.undo(ctx, pair.recipientWrite)
}

// undo reverses one header write. It runs even if ctx has been cancelled.
func (r *Reconciler) undo(ctx context.Context, write repositories.HeaderWrite) {
	outcome, err := r.headers.UndoHeader(context.WithoutCancel(ctx), write)
	if err != nil {
		observability.IncCompensation("undo", "error")
		r.logger.Error().Err(err).Str("header_id", write.HeaderID).Msg("header compensation failed")
		return
	}
	switch outcome {
	case repositories.UndoNone:
		return
	case repositories.UndoSuperseded:
		r.logger.Info().Str("header_id", write.HeaderID).Msg("header rewritten by a later send, keeping it")
	default:
		r.logger.Warn().Str("action", string(outcome)).Str("header_id", write.HeaderID).Msg("header write undone")
	}
	observability.IncCompensation(string(outcome), "ok")
}

func (r *Reconciler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "header reconciliation failed")
	r.logger.Warn().Err(err).Msg("header reconciliation failed")
	return err
}
