package service

import (
	"time"

	"tripcore/internal/domain"
)

// CancellationPolicy computes cancellation fees from the time elapsed since
// the trip entered its current status. Fees are in minor units of the trip
// currency. An elapsed time equal to the grace period is still free.
type CancellationPolicy struct {
	RequestedGrace time.Duration
	RequestedFee   int64
	AssignedGrace  time.Duration
	AssignedFee    int64
}

// DefaultCancellationPolicy returns the reference policy: 5 minutes free then
// 5.00 while REQUESTED, 2 minutes free then 8.00 once a driver is assigned.
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{
		RequestedGrace: 5 * time.Minute,
		RequestedFee:   500,
		AssignedGrace:  2 * time.Minute,
		AssignedFee:    800,
	}
}

// Fee returns the fee owed if actor cancels trip at now.
func (p CancellationPolicy) Fee(trip *domain.Trip, actor domain.Actor, now time.Time) (domain.CancellationFee, error) {
	switch actor {
	case domain.ActorDriver:
		return domain.FreeCancellation(trip.Currency), nil
	case domain.ActorPassenger, domain.ActorSystem:
	default:
		return domain.CancellationFee{}, &domain.ValidationError{Field: "actor", Reason: "unknown actor " + string(actor)}
	}

	switch trip.Status {
	case domain.TripStatusRequested:
		return p.charge(now.Sub(trip.CreatedAt), p.RequestedGrace, p.RequestedFee, trip.Currency), nil
	case domain.TripStatusDriverAssigned:
		if trip.AssignedAt == nil {
			return domain.CancellationFee{}, ErrFeeUndefined
		}
		return p.charge(now.Sub(*trip.AssignedAt), p.AssignedGrace, p.AssignedFee, trip.Currency), nil
	case domain.TripStatusInProgress, domain.TripStatusCompleted, domain.TripStatusCancelled:
		return domain.CancellationFee{}, ErrFeeUndefined
	}
	return domain.CancellationFee{}, ErrFeeUndefined
}

func (p CancellationPolicy) charge(elapsed, grace time.Duration, amount int64, currency string) domain.CancellationFee {
	if elapsed <= grace {
		return domain.FreeCancellation(currency)
	}
	return domain.ChargedCancellation(amount, currency)
}
