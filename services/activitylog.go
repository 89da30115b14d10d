package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"tutorlink_go/database"
	"tutorlink_go/models"
)

// ActivityLogMaintenance drains the Redis log cache into the database and
// prunes rows past the retention window.
type ActivityLogMaintenance struct {
	redisClient *redis.Client
	retention   time.Duration
}

func NewActivityLogMaintenance() *ActivityLogMaintenance {
	return &ActivityLogMaintenance{
		redisClient: database.GetRedisClient(),
		retention:   90 * 24 * time.Hour,
	}
}

// FlushCachedLogsToDatabase moves logs from the Redis cache to the database
func (alm *ActivityLogMaintenance) FlushCachedLogsToDatabase() error {
	if alm.redisClient == nil {
		return fmt.Errorf("redis client not available")
	}

	ctx := context.Background()
	cutoffTime := time.Now().Add(-24 * time.Hour)

	expiredLogs, err := alm.redisClient.ZRangeByScore(ctx, "logs:queue", &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoffTime.Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get expired logs: %v", err)
	}

	var processedCount, errorCount int

	for _, logKey := range expiredLogs {
		logData, err := alm.redisClient.Get(ctx, logKey).Result()
		if err != nil {
			if err != redis.Nil {
				logrus.WithError(err).Errorf("Failed to get log data for key: %s", logKey)
				errorCount++
			}
			continue
		}

		var activityLog models.ActivityLog
		if err := json.Unmarshal([]byte(logData), &activityLog); err != nil {
			logrus.WithError(err).Errorf("Failed to unmarshal log data for key: %s", logKey)
			errorCount++
			continue
		}

		if err := database.DB.Create(&activityLog).Error; err != nil {
			logrus.WithError(err).Error("Failed to save cached log to database")
			errorCount++
			continue
		}

		pipeline := alm.redisClient.Pipeline()
		pipeline.Del(ctx, logKey)
		pipeline.ZRem(ctx, "logs:queue", logKey)
		if _, err = pipeline.Exec(ctx); err != nil {
			logrus.WithError(err).Errorf("Failed to remove log from cache: %s", logKey)
		}

		processedCount++
	}

	if processedCount > 0 || errorCount > 0 {
		logrus.Infof("Flushed %d cached logs to database, %d errors", processedCount, errorCount)
	}
	return nil
}

// PruneOldLogs deletes activity logs past the retention window
func (alm *ActivityLogMaintenance) PruneOldLogs() error {
	cutoff := time.Now().Add(-alm.retention)
	result := database.DB.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return fmt.Errorf("failed to prune old logs: %v", result.Error)
	}
	if result.RowsAffected > 0 {
		logrus.Infof("Pruned %d activity logs older than %s", result.RowsAffected, cutoff.Format("2006-01-02"))
	}
	return nil
}

// StartScheduler runs flush and prune on an hourly cadence
func (alm *ActivityLogMaintenance) StartScheduler() {
	go func() {
		if err := alm.FlushCachedLogsToDatabase(); err != nil {
			logrus.WithError(err).Warn("initial log flush failed")
		}

		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := alm.FlushCachedLogsToDatabase(); err != nil {
				logrus.WithError(err).Warn("periodic log flush failed")
			}
			if err := alm.PruneOldLogs(); err != nil {
				logrus.WithError(err).Warn("periodic log prune failed")
			}
		}
	}()
}
