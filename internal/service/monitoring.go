package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// RecordError persists an operational error for operator review.
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	for _, option := range options {
		option(errorLog)
	}

	if err := m.db.Create(errorLog).Error; err != nil {
		m.logger.Error("Failed to record error log", zap.Error(err))
		return err
	}
	return nil
}

// RecordMetric persists one metric sample.
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	sample := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Timestamp:  time.Now().UTC(),
	}

	if tags != nil {
		if encoded, err := json.Marshal(tags); err == nil {
			sample.Tags = string(encoded)
		}
	}

	if err := m.db.Create(sample).Error; err != nil {
		m.logger.Error("Failed to record metric", zap.String("metric", name), zap.Error(err))
		return err
	}
	return nil
}

// ErrorLogOption customizes a recorded error.
type ErrorLogOption func(*models.ErrorLog)

// WithPlatform tags the error with a platform name.
func WithPlatform(platformName string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.PlatformName = platformName
	}
}

// WithQueueItem links the error to a queue item.
func WithQueueItem(itemID uuid.UUID) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.QueueItemID = &itemID
	}
}

// WithRecord links the error to a publishing record.
func WithRecord(recordID uuid.UUID) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.RecordID = &recordID
	}
}

// WithContext attaches arbitrary context as JSON.
func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = string(contextBytes)
		}
	}
}
