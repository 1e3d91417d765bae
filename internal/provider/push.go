package provider

import (
	"go.uber.org/zap"
)

// PushStub is an inert placeholder for a future push channel: it only logs
// and never dispatches. Jobs with a push channel enabled are otherwise
// unaffected by its presence.
type PushStub struct {
	logger *zap.Logger
}

func NewPushStub(logger *zap.Logger) *PushStub {
	return &PushStub{logger: logger}
}

// Note logs the would-be dispatch and returns without sending.
func (p *PushStub) Note(notificationID, recipient string) {
	p.logger.Info("push channel is a stub, not dispatching",
		zap.String("notification_id", notificationID),
		zap.String("recipient", recipient))
}
