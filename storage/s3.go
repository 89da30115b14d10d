package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tutorlink_go/config"
	"tutorlink_go/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportArchiver copies generated attendance workbooks to S3 and records an
// ExportArchive row per upload. Uploads run off the request path; a failed
// upload marks the row failed but never affects the download the caller
// already received.
type ExportArchiver struct {
	db        *gorm.DB
	awsConfig aws.Config
	bucket    string
	enabled   bool
}

func NewExportArchiver(db *gorm.DB) *ExportArchiver {
	cfg, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(config.AppConfig.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; export archiving disabled")
	}

	return &ExportArchiver{
		db:        db,
		awsConfig: cfg,
		bucket:    config.AppConfig.S3BucketName,
		enabled:   config.AppConfig.ArchiveExports && err == nil,
	}
}

// Enabled reports whether uploads will actually happen.
func (ea *ExportArchiver) Enabled() bool {
	return ea.enabled && ea.awsConfig.Region != ""
}

// Archive uploads workbook bytes and records the outcome. Safe to call in a
// goroutine; all errors end up in the archive row and the log.
func (ea *ExportArchiver) Archive(fileName string, from, to time.Time, rowCount int, data []byte) {
	archive := models.ExportArchive{
		FileName: fileName,
		FromDate: from,
		ToDate:   to,
		RowCount: rowCount,
		FileSize: int64(len(data)),
		Status:   "pending",
	}
	if err := ea.db.Create(&archive).Error; err != nil {
		logrus.WithError(err).Error("Failed to record export archive")
		return
	}

	if !ea.Enabled() {
		ea.db.Model(&archive).Updates(map[string]interface{}{
			"status": "failed",
			"error":  "archiving disabled or AWS not configured",
		})
		return
	}

	now := time.Now()
	key := fmt.Sprintf("exports/attendance/%d/%02d/%s", now.Year(), now.Month(), fileName)

	if err := ea.uploadToS3(key, data); err != nil {
		logrus.WithError(err).WithField("s3Key", key).Error("Export upload to S3 failed")
		ea.db.Model(&archive).Updates(map[string]interface{}{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}

	ea.db.Model(&archive).Updates(map[string]interface{}{
		"status": "completed",
		"s3_key": key,
	})
	logrus.WithField("s3Key", key).Info("Export archived to S3")
}

// List returns archive rows, newest first.
func (ea *ExportArchiver) List() ([]models.ExportArchive, error) {
	var archives []models.ExportArchive
	if err := ea.db.Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("failed to list export archives: %w", err)
	}
	return archives, nil
}

// Download streams a previously archived workbook back from S3.
func (ea *ExportArchiver) Download(archiveID uint) (io.ReadCloser, string, error) {
	var archive models.ExportArchive
	if err := ea.db.First(&archive, archiveID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", fmt.Errorf("archive not found")
		}
		return nil, "", fmt.Errorf("failed to load archive: %w", err)
	}
	if archive.Status != "completed" || archive.S3Key == "" {
		return nil, "", fmt.Errorf("archive %d was never uploaded", archiveID)
	}

	if ea.awsConfig.Region == "" {
		return nil, "", fmt.Errorf("AWS not configured")
	}
	client := s3.NewFromConfig(ea.awsConfig)
	result, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &ea.bucket,
		Key:    &archive.S3Key,
	})
	if err != nil {
		return nil, "", err
	}
	return result.Body, archive.FileName, nil
}

func (ea *ExportArchiver) uploadToS3(key string, data []byte) error {
	client := s3.NewFromConfig(ea.awsConfig)
	_, err := client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      &ea.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
	})
	return err
}
