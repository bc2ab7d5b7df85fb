// Package server is the HTTP surface of the pipeline: trigger a pass, read
// job progress, read reconciled records.
package server

// Server aggregates the entity-specific HTTP servers. There is only the sync
// server today.
type Server struct {
	SyncServer
}

func NewServer(
	syncServer SyncServer,
) Server {
	return Server{
		SyncServer: syncServer,
	}
}
