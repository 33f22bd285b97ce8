package error_notificator

import (
	"context"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
)

const notifyTimeout = 10 * time.Second

type Service struct {
	infra Notificator
	log   *logger.ZapLogger
}

func NewService(infra Notificator, log *logger.ZapLogger) *Service {
	return &Service{infra: infra, log: log}
}

func (s *Service) Notify(ctx context.Context, err error, details string) error {
	return s.infra.Notify(ctx, err, details)
}

// NotifyAsync reports err in the background with its own timeout.
func (s *Service) NotifyAsync(err error, details string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if nErr := s.infra.Notify(ctx, err, details); nErr != nil {
			s.log.Log(logger.LogEntry{Level: "warn", Message: "error notification failed", Error: nErr})
		}
	}()
	return done
}
