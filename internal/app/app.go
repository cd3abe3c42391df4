// Package app implements the interview scheduling core: recurring
// availability, slot resolution, panel intersection, load balancing,
// conflict detection, self-service booking and the reminder pipeline.
package app

import (
	"log/slog"
	"time"
)

// App wires the scheduling core to its collaborators and exposes the HTTP
// handlers.
type App struct {
	Store     Store
	Scheduler *Scheduler
	Calendar  CalendarProvider
	Email     EmailSender
	Lock      SlotLock
	Logger    *slog.Logger

	// Google is set only when the connect flow is configured. It is the
	// same object as Calendar when present.
	Google *GoogleCalendar

	now func() time.Time
}

// NewApp constructs the application. calendar and google may be nil.
func NewApp(store Store, calendar CalendarProvider, google *GoogleCalendar, email EmailSender, lock SlotLock, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if lock == nil {
		lock = NoopSlotLock{}
	}
	return &App{
		Store:     store,
		Scheduler: NewScheduler(store, calendar, logger),
		Calendar:  calendar,
		Email:     email,
		Lock:      lock,
		Logger:    logger,
		Google:    google,
		now:       time.Now,
	}
}

// Now returns the current time; tests substitute it.
func (a *App) Now() time.Time { return a.now() }
