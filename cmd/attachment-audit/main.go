// Command attachment-audit is a scheduled Lambda that checks recorded
// attachments against the blob store and reports rows whose object is gone.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/caarlos0/env/v11"

	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/db"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/repository"
	"github.com/GoblinVrc/service-request-backend/internal/storage"
)

type auditConfig struct {
	AWSRegion string `env:"AWS_REGION"`
	Limit     int    `env:"AUDIT_LIMIT" envDefault:"1000"`
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"ServiceRequests/Attachments"`

	Database config.DatabaseOptions
	Blob     config.BlobOptions
}

type event struct{}

type auditFinding struct {
	RequestID int64  `json:"request_id"`
	BlobPath  string `json:"blob_path"`
	Error     string `json:"error,omitempty"`
}

type result struct {
	Checked int            `json:"checked"`
	Missing []auditFinding `json:"missing"`
	Errors  []auditFinding `json:"errors,omitempty"`
}

type attachmentLister interface {
	RecentAttachments(ctx context.Context, limit int) ([]models.Attachment, error)
}

type metricsPutter interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// audit checks the newest attachments and collects those without a blob
func audit(ctx context.Context, rows attachmentLister, blob storage.Blob, limit int) (result, error) {
	res := result{Missing: []auditFinding{}}
	attachments, err := rows.RecentAttachments(ctx, limit)
	if err != nil {
		return res, err
	}
	for _, a := range attachments {
		res.Checked++
		ok, err := blob.Exists(ctx, a.BlobPath)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, auditFinding{RequestID: a.RequestID, BlobPath: a.BlobPath, Error: err.Error()})
		case !ok:
			res.Missing = append(res.Missing, auditFinding{RequestID: a.RequestID, BlobPath: a.BlobPath})
		}
	}
	return res, nil
}

func putMetrics(ctx context.Context, cw metricsPutter, ns, bucket string, r result) error {
	now := time.Now()
	metrics := []cwtypes.MetricDatum{
		{MetricName: awsStr("AttachmentsChecked"), Timestamp: &now, Unit: cwtypes.StandardUnitCount, Value: awsFloat(int64(r.Checked)), Dimensions: dims("Bucket", bucket)},
		{MetricName: awsStr("MissingBlobs"), Timestamp: &now, Unit: cwtypes.StandardUnitCount, Value: awsFloat(int64(len(r.Missing))), Dimensions: dims("Bucket", bucket)},
		{MetricName: awsStr("CheckErrors"), Timestamp: &now, Unit: cwtypes.StandardUnitCount, Value: awsFloat(int64(len(r.Errors))), Dimensions: dims("Bucket", bucket)},
	}
	_, err := cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &ns,
		MetricData: metrics,
	})
	return err
}

func handler(ctx context.Context, _ event) (result, error) {
	var ac auditConfig
	if err := env.Parse(&ac); err != nil {
		return result{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if ac.AWSRegion == "" {
		ac.AWSRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
	if ac.AWSRegion == "" {
		ac.AWSRegion = "eu-central-1"
	}
	if ac.Database.SecretARN == "" {
		return result{}, fmt.Errorf("DATABASE_SECRET_ARN env var is required")
	}
	if ac.Blob.Bucket == "" {
		return result{}, fmt.Errorf("BLOB_BUCKET env var is required")
	}

	cfg := &config.Config{AWSRegion: ac.AWSRegion, Database: ac.Database, Blob: ac.Blob}
	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		return result{}, err
	}
	if err := cfg.ResolveDatabaseURL(ctx, secretsmanager.NewFromConfig(awsCfg)); err != nil {
		return result{}, err
	}

	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return result{}, err
	}
	defer store.Close()

	blob, err := storage.New(ctx, cfg)
	if err != nil {
		return result{}, err
	}

	res, err := audit(ctx, repository.New(store), blob, ac.Limit)
	if err != nil {
		return res, err
	}

	if err := putMetrics(ctx, cloudwatch.NewFromConfig(awsCfg), ac.Namespace, ac.Blob.Bucket, res); err != nil {
		logging.LogKV("warn", "put_metric_data_failed", map[string]interface{}{"error": err.Error()})
	}
	logging.LogKV("info", "attachment_audit", map[string]interface{}{
		"checked": res.Checked,
		"missing": len(res.Missing),
		"errors":  len(res.Errors),
	})
	return res, nil
}

func awsStr(s string) *string { return &s }

func awsFloat(i int64) *float64 {
	f := float64(i)
	return &f
}

func dims(k, v string) []cwtypes.Dimension {
	return []cwtypes.Dimension{{Name: &k, Value: &v}}
}

func main() { lambda.Start(handler) }
