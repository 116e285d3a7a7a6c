package services

import "time"

// SetPublishTimeout shortens the event bus bound for tests.
func SetPublishTimeout(svc OrderService, d time.Duration) {
	svc.(*orderServiceImpl).publishTimeout = d
}
