package handler

import (
	"inboxchat/internal/app/db"
	"inboxchat/internal/app/dispatch"
	"inboxchat/internal/app/hub"
	"inboxchat/internal/app/storage"
	"inboxchat/internal/configs"
)

// AppDeps bundles what the handlers need.
type AppDeps struct {
	Config     *configs.AppConfig
	Hub        *hub.Hub
	Store      db.Store
	Dispatcher *dispatch.Dispatcher

	// StorageService is nil when attachments are disabled.
	StorageService storage.StorageService
}
