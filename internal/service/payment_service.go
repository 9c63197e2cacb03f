package service

import (
	"context"
	"time"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"

	"github.com/google/uuid"
)

var _ serviceInterfaces.PaymentCompletionService = (*PaymentService)(nil)

// PaymentService confirms reservations once the external payment provider
// reports their order as paid.
type PaymentService struct {
	reservationRepo interfaces.ReservationRepository
	queueService    interfaces.QueueService
}

func NewPaymentService(reservationRepo interfaces.ReservationRepository, queueService interfaces.QueueService) *PaymentService {
	return &PaymentService{
		reservationRepo: reservationRepo,
		queueService:    queueService,
	}
}

// OnOrderPaid walks the paid order's line items and confirms each
// referenced reservation. The confirmation is a conditional transition
// from pending_payment, so replays of the same callback and lines without
// a reservation reference are no-ops. A bad line never fails the callback;
// the provider must not keep retrying a whole order over one stray item.
func (s *PaymentService) OnOrderPaid(ctx context.Context, orderID string, items []serviceInterfaces.OrderLineItem) error {
	logger.Info("Processing payment completion for order %s with %d line items", orderID, len(items))

	for _, item := range items {
		if item.ReservationID == uuid.Nil {
			logger.Debug("Order %s line carries no reservation reference, skipping", orderID)
			continue
		}

		transitioned, err := s.reservationRepo.TransitionStatus(ctx, item.ReservationID,
			booking.StatusPendingPayment, booking.StatusConfirmed, orderID)
		if err != nil {
			logger.Error("Failed to confirm reservation %s for order %s: %v", item.ReservationID, orderID, err)
			continue
		}

		if !transitioned {
			// Already confirmed by an earlier callback, or the reservation
			// never existed. Either way there is nothing left to do.
			logger.Info("Reservation %s not in pending_payment, order %s callback ignored for it", item.ReservationID, orderID)
			continue
		}

		logger.Info("Reservation %s confirmed by order %s", item.ReservationID, orderID)

		job := interfaces.NotificationJob{
			ReservationID: item.ReservationID,
			Timestamp:     time.Now(),
		}
		if err := s.queueService.EnqueueNotification(ctx, job); err != nil {
			logger.Error("Failed to enqueue notifications for reservation %s: %v", item.ReservationID, err)
		}
	}

	return nil
}
