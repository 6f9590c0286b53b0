package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/storage"
	"alcyxob/plan-tracker/internal/telemetry/tracing"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type ExportResult struct {
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportService writes completed sessions to object storage as CSV.
type ExportService interface {
	Export(ctx context.Context, userID, sessionID string) (*ExportResult, error)
}

type exportService struct {
	sessions SessionService
	storage  storage.ObjectStorage // nil when not configured
	expiry   time.Duration
	metrics  *metrics.Manager
}

func NewExportService(sessions SessionService, objectStorage storage.ObjectStorage, expiry time.Duration, metricsManager *metrics.Manager) ExportService {
	if expiry <= 0 {
		expiry = storage.DefaultPresignedURLExpiry
	}
	return &exportService{
		sessions: sessions,
		storage:  objectStorage,
		expiry:   expiry,
		metrics:  metricsManager,
	}
}

func (s *exportService) Export(ctx context.Context, userID, sessionID string) (_ *ExportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exportService.Export")
	defer func() { tracing.EndSpan(span, err) }()

	if s.storage == nil {
		return nil, ErrExportUnavailable
	}
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsActive() {
		return nil, ErrSessionNotCompleted
	}

	body, err := SessionCSV(session.Table())
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%s/%s/%s.csv", userID, session.WorkoutID, uuid.NewString())
	if err := s.storage.PutObject(ctx, key, "text/csv", body); err != nil {
		return nil, fmt.Errorf("upload export: %w: %w", ErrStoreFailure, err)
	}

	url, err := s.storage.GeneratePresignedDownloadURL(ctx, key, s.expiry)
	if err != nil {
		if delErr := s.storage.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			log.WithError(delErr).WithField("key", key).Warn("orphaned export object")
		}
		return nil, fmt.Errorf("presign export: %w: %w", ErrStoreFailure, err)
	}

	s.metrics.CounterExports.Inc()
	return &ExportResult{
		ObjectKey: key,
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(s.expiry),
	}, nil
}

// SessionCSV renders the table with a header row of column names. Missing
// cells are empty.
func SessionCSV(table domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, c := range table.Columns {
			record[i] = row.Value(c)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
