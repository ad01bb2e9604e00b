package sms

import (
	"context"

	"github.com/psytech/auth-backend/internal/common/logger"
)

// Gateway delivers a one-time code to a phone number. Implementations must be
// safe for concurrent use.
type Gateway interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

// ConsoleGateway logs codes instead of sending them. Used in development and
// when no provider credentials are configured.
type ConsoleGateway struct {
	log *logger.Logger
}

func NewConsoleGateway(log *logger.Logger) *ConsoleGateway {
	return &ConsoleGateway{log: log}
}

func (g *ConsoleGateway) Send(ctx context.Context, phoneNumber, code string) error {
	g.log.WithFields(ctx, logger.Fields{
		"phone_number": phoneNumber,
		"action":       "sms_console",
	}).Infof("OTP for %s: %s", phoneNumber, code)
	return nil
}
