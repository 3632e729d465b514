// Package delivery wraps the outbound SES transport. Transport failures are
// captured and returned as typed results; nothing in this package panics or
// returns an error across the Send boundary.
package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"golang.org/x/time/rate"

	appconfig "github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

// Message is one fully-rendered email ready for the transport.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	ReferenceID string
	Tags        map[string]string
}

// SendResult reports the outcome of one transport call.
type SendResult struct {
	Success   bool
	MessageID string
	Reason    string
}

// sesAPI is the slice of the SES v2 client the sender uses; tests stub it.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Client sends single messages through AWS SES v2 with a token-bucket
// limiter in front, sized to the transport's documented per-second ceiling.
type Client struct {
	api       sesAPI
	fromName  string
	fromEmail string
	replyTo   string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewClient creates a delivery client. Missing credentials are a contract
// error and fail construction immediately, before any subscriber is touched.
func NewClient(ctx context.Context, cfg appconfig.SESConfig) (*Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("ses credentials not configured")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("ses from address not configured")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		api:       sesv2.NewFromConfig(awsCfg),
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
		replyTo:   cfg.ReplyTo,
		timeout:   cfg.Timeout(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1),
	}, nil
}

// Send delivers one message. All failures, including rate-limiter context
// cancellation, come back as a SendResult, never as an error.
func (c *Client) Send(ctx context.Context, msg Message) SendResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return SendResult{Success: false, Reason: fmt.Sprintf("rate limiter: %v", err)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML)},
					Text: &types.Content{Data: aws.String(msg.Text)},
				},
			},
		},
		EmailTags: buildTags(msg),
	}
	if c.replyTo != "" {
		input.ReplyToAddresses = []string{c.replyTo}
	}

	out, err := c.api.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses send failed", "recipient", msg.To, "reference", msg.ReferenceID, "error", err)
		return SendResult{Success: false, Reason: err.Error()}
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return SendResult{Success: true, MessageID: messageID}
}

// buildTags converts the message tags plus the per-recipient reference into
// SES message tags for downstream analytics partitioning.
func buildTags(msg Message) []types.MessageTag {
	tags := make([]types.MessageTag, 0, len(msg.Tags)+1)
	if msg.ReferenceID != "" {
		tags = append(tags, types.MessageTag{
			Name:  aws.String("reference"),
			Value: aws.String(sanitizeTag(msg.ReferenceID)),
		})
	}
	for name, value := range msg.Tags {
		if value == "" {
			continue
		}
		tags = append(tags, types.MessageTag{
			Name:  aws.String(sanitizeTag(name)),
			Value: aws.String(sanitizeTag(value)),
		})
	}
	return tags
}

// ReferenceID derives the stable per-recipient identifier attached to every
// send, so a delivery can be traced across retries and runs.
func ReferenceID(campaign, email string) string {
	sum := sha256.Sum256([]byte(campaign + "|" + strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:8])
}

// sanitizeTag maps arbitrary strings onto the SES tag charset
// (alphanumerics, underscore and dash, max 256 chars).
func sanitizeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 256 {
		out = out[:256]
	}
	return out
}
