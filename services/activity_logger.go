package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"tws-options/database"
	"tws-options/models"
)

// ChainRequestActivity summarizes one served chain request for the audit
// trail.
type ChainRequestActivity struct {
	RequestID          string
	Symbol             string
	Expiration         string
	Policy             string // "explicit", "delta-filter", "all", "atm-window", "empty-universe"
	NeedGreeks         bool
	StrikesSelected    int
	ContractsQualified int
	GreeksReceived     int
	Elapsed            time.Duration
}

// ActivityLogger records request activity to the local store and the
// structured log. Chain payloads themselves are never persisted.
type ActivityLogger struct {
	storage *database.LocalStorage
	logger  *logrus.Logger
}

// NewActivityLogger creates a new activity logger. storage may be nil, in
// which case activity only goes to the log.
func NewActivityLogger(storage *database.LocalStorage) *ActivityLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ActivityLogger{
		storage: storage,
		logger:  logger,
	}
}

// RecordChainRequest writes one audit row. Storage failures are logged and
// swallowed; auditing never fails a request.
func (al *ActivityLogger) RecordChainRequest(activity ChainRequestActivity) {
	al.logger.WithFields(logrus.Fields{
		"requestID": activity.RequestID,
		"symbol":    activity.Symbol,
		"policy":    activity.Policy,
		"strikes":   activity.StrikesSelected,
		"qualified": activity.ContractsQualified,
		"greeks":    activity.GreeksReceived,
		"elapsed":   activity.Elapsed.Round(time.Millisecond).String(),
	}).Info("Chain request served")

	if al.storage == nil {
		return
	}

	record := &models.DBChainRequest{
		RequestID:          activity.RequestID,
		Symbol:             activity.Symbol,
		Expiration:         activity.Expiration,
		Policy:             activity.Policy,
		NeedGreeks:         activity.NeedGreeks,
		StrikesSelected:    activity.StrikesSelected,
		ContractsQualified: activity.ContractsQualified,
		GreeksReceived:     activity.GreeksReceived,
		ElapsedMs:          activity.Elapsed.Milliseconds(),
		ServedAt:           time.Now(),
	}

	if err := al.storage.SaveChainRequest(record); err != nil {
		al.logger.WithError(err).Warn("Failed to save chain request activity")
	}
}

// RecentRequests returns the most recent audit rows, newest first.
func (al *ActivityLogger) RecentRequests(limit int) ([]*models.DBChainRequest, error) {
	if al.storage == nil {
		return []*models.DBChainRequest{}, nil
	}
	return al.storage.RecentChainRequests(limit)
}
