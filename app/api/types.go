package api

import (
	"log/slog"

	"github.com/lysyi3m/hn-comb/app/database"
	"github.com/lysyi3m/hn-comb/app/tasks"
)

type StatusInterface interface {
	Snapshot() tasks.RunStatusSnapshot
	Healthy() bool
}

var _ StatusInterface = (*tasks.RunStatus)(nil)

type RunRequester interface {
	RequestRun() error
}

type Handler struct {
	feedPath  string
	status    StatusInterface
	journal   database.FetchJournal // nil when the journal is disabled
	scheduler RunRequester
	logger    *slog.Logger
}
