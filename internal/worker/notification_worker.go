package worker

import (
	"github.com/fieldserve/ticket-engine/internal/notify"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notifyService *notify.Service) {
	if notifyService == nil {
		return
	}
	notifyService.RegisterHandlers()
}
