// Package notify sends best-effort messages about request lifecycle events.
// Callers log failures and never fail the triggering operation.
package notify

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/models"
)

// Notifier announces lifecycle events of a request
type Notifier interface {
	RequestCreated(ctx context.Context, req *models.ServiceRequest) error
	StatusChanged(ctx context.Context, req *models.ServiceRequest, from, to models.RequestStatus) error
}

// Nop discards every notification
type Nop struct{}

func (Nop) RequestCreated(context.Context, *models.ServiceRequest) error { return nil }

func (Nop) StatusChanged(context.Context, *models.ServiceRequest, models.RequestStatus, models.RequestStatus) error {
	return nil
}

// Multi fans out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) RequestCreated(ctx context.Context, req *models.ServiceRequest) error {
	var errs []error
	for _, n := range m {
		if err := n.RequestCreated(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) StatusChanged(ctx context.Context, req *models.ServiceRequest, from, to models.RequestStatus) error {
	var errs []error
	for _, n := range m {
		if err := n.StatusChanged(ctx, req, from, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifiers enabled in opts, or Nop when none are
func New(opts config.NotifyOptions, awsCfg aws.Config) Notifier {
	var m Multi
	if opts.EmailEnabled {
		m = append(m, NewSESNotifier(awsCfg, opts.FromEmail, opts.ReplyTo))
	}
	if opts.SMSEnabled {
		m = append(m, NewSNSNotifier(awsCfg))
	}
	if len(m) == 0 {
		return Nop{}
	}
	return m
}
