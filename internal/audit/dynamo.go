package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

// Record types stored in the audit table's "record" attribute.
const (
	recordRun        = "run"
	recordRunFailure = "run_failure"
	recordSubFailure = "subscriber_failure"
	recordEmail      = "email"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Dynamo writes audit records to a single DynamoDB table keyed by
// (pk = record type, sk = timestamp#uuid). Run summaries are additionally
// archived as JSON reports in S3 when a bucket is configured.
type Dynamo struct {
	db     dynamoAPI
	s3     s3API
	table  string
	bucket string
	now    func() time.Time
}

// NewDynamo creates a recorder over an existing DynamoDB client. The S3
// client and bucket are optional; pass nil/"" to skip report archiving.
func NewDynamo(db *dynamodb.Client, table string, s3c *s3.Client, bucket string) *Dynamo {
	d := &Dynamo{db: db, table: table, bucket: bucket, now: time.Now}
	if s3c != nil {
		d.s3 = s3c
	}
	return d
}

// item is the flat shape every audit record marshals to.
type item struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	Record       string `dynamodbav:"record"`
	RunID        string `dynamodbav:"run_id,omitempty"`
	Campaign     string `dynamodbav:"campaign,omitempty"`
	SubscriberID string `dynamodbav:"subscriber_id,omitempty"`
	Email        string `dynamodbav:"email,omitempty"`
	Stage        string `dynamodbav:"stage,omitempty"`
	Reason       string `dynamodbav:"reason,omitempty"`
	Status       string `dynamodbav:"status,omitempty"`
	Success      bool   `dynamodbav:"success"`
	MessageID    string `dynamodbav:"message_id,omitempty"`
	RegionUsed   string `dynamodbav:"region_used,omitempty"`
	ListingID    string `dynamodbav:"listing_id,omitempty"`
	Processed    int    `dynamodbav:"subscribers_processed,omitempty"`
	Sent         int    `dynamodbav:"emails_sent,omitempty"`
	Failed       int    `dynamodbav:"emails_failed,omitempty"`
	CreatedAt    string `dynamodbav:"created_at"`
}

func (d *Dynamo) RunCompleted(ctx context.Context, run domain.CampaignRun) {
	d.put(ctx, item{
		PK:        recordRun,
		Record:    recordRun,
		RunID:     run.ID,
		Campaign:  run.Campaign,
		Status:    string(run.Status),
		Processed: run.SubscribersProcessed,
		Sent:      run.EmailsSent,
		Failed:    run.EmailsFailed,
	})
	d.archiveReport(ctx, run)
}

func (d *Dynamo) RunFailed(ctx context.Context, runID, reason string) {
	d.put(ctx, item{
		PK:     recordRunFailure,
		Record: recordRunFailure,
		RunID:  runID,
		Reason: reason,
		Status: string(domain.RunFailed),
	})
}

func (d *Dynamo) SubscriberFailed(ctx context.Context, runID, subscriberID, stage, reason string) {
	d.put(ctx, item{
		PK:           recordSubFailure,
		Record:       recordSubFailure,
		RunID:        runID,
		SubscriberID: subscriberID,
		Stage:        stage,
		Reason:       reason,
	})
}

func (d *Dynamo) EmailSent(ctx context.Context, outcome domain.DeliveryOutcome) {
	d.putOutcome(ctx, outcome)
}

func (d *Dynamo) EmailFailed(ctx context.Context, outcome domain.DeliveryOutcome) {
	d.putOutcome(ctx, outcome)
}

func (d *Dynamo) putOutcome(ctx context.Context, outcome domain.DeliveryOutcome) {
	d.put(ctx, item{
		PK:         recordEmail,
		Record:     recordEmail,
		RunID:      outcome.RunID,
		Email:      outcome.Email,
		Success:    outcome.Success,
		MessageID:  outcome.MessageID,
		Reason:     outcome.Reason,
		RegionUsed: outcome.RegionUsed,
		ListingID:  outcome.ListingID,
	})
}

func (d *Dynamo) put(ctx context.Context, it item) {
	now := d.now().UTC()
	it.SK = fmt.Sprintf("%s#%s", now.Format(time.RFC3339Nano), uuid.NewString())
	it.CreatedAt = now.Format(time.RFC3339)

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		logger.Error("audit marshal failed", "record", it.Record, "error", err)
		return
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		logger.Warn("audit write failed", "record", it.Record, "run_id", it.RunID, "error", err)
	}
}

// archiveReport drops the finished run summary as a JSON object in S3,
// keyed by campaign and run id so reports list chronologically per campaign.
func (d *Dynamo) archiveReport(ctx context.Context, run domain.CampaignRun) {
	if d.s3 == nil || d.bucket == "" {
		return
	}
	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		logger.Error("run report marshal failed", "run_id", run.ID, "error", err)
		return
	}
	key := fmt.Sprintf("reports/%s/%s/%s.json", run.Campaign, d.now().UTC().Format("2006-01-02"), run.ID)
	_, err = d.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Warn("run report archive failed", "run_id", run.ID, "bucket", d.bucket, "error", err)
	}
}
