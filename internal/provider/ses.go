package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the slice of the SES client the provider uses; mocked in tests.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESProvider delivers email through Amazon SES.
type SESProvider struct {
	client sesAPI
	from   string
}

func NewSESProvider(ctx context.Context, region, from string) (*SESProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESProvider{client: ses.NewFromConfig(cfg), from: from}, nil
}

func (p *SESProvider) SendEmail(ctx context.Context, to, subject, htmlContent, textContent string) (string, error) {
	out, err := p.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlContent)},
				Text: &types.Content{Data: aws.String(textContent)},
			},
		},
		Source: aws.String(p.from),
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// compile-time check that SESProvider implements EmailProvider
var _ EmailProvider = (*SESProvider)(nil)
