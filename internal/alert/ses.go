package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// SESConfig holds the configuration for creating an SES alerter.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
	Recipients      []string
}

// SendEmailAPI is the SES v2 SendEmail operation; tests substitute a mock.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES emails alerts through AWS SES v2. It makes one attempt per alert.
type SES struct {
	sender     string
	recipients []string
	client     SendEmailAPI
}

// NewSES loads AWS configuration and creates an SES alerter. Static
// credentials are used when both keys are set; otherwise the default chain.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	if cfg.Sender == "" || len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("ses alerter requires a sender and at least one recipient")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESWithClient(cfg.Sender, cfg.Recipients, sesv2.NewFromConfig(awsCfg)), nil
}

// NewSESWithClient creates an SES alerter with a custom client.
func NewSESWithClient(sender string, recipients []string, client SendEmailAPI) *SES {
	return &SES{sender: sender, recipients: recipients, client: client}
}

func (s *SES) Notify(ctx context.Context, a *domain.Alert) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(Subject(a)),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(Body(a)),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func (s *SES) Name() string {
	return DriverSES
}

var _ ports.Alerter = (*SES)(nil)
