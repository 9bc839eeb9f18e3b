package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves region and credentials for SQS/SNS clients.
func loadAWSConfig(ctx context.Context, region string, creds *AWSCredentials) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if creds != nil && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// awsMessage is the encoded form of an event shared by SQS and SNS.
type awsMessage struct {
	body  string
	attrs map[string]string
	// set only for FIFO destinations
	groupID, dedupID *string
}

// encodeAWSMessage marshals evt. FIFO destinations (".fifo" suffix) group
// messages by author and deduplicate on the content id.
func encodeAWSMessage(evt Event, destination string) (awsMessage, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return awsMessage{}, fmt.Errorf("marshal event: %w", err)
	}
	msg := awsMessage{body: string(payload), attrs: evt.attributes()}
	if strings.HasSuffix(destination, ".fifo") {
		group := evt.AuthorID
		if group == "" {
			group = evt.Type
		}
		msg.groupID = aws.String(group)
		msg.dedupID = aws.String(evt.ContentID)
	}
	return msg, nil
}

// stringAttributes converts plain attributes into the SDK attribute type of
// one service.
func stringAttributes[T any](attrs map[string]string, mk func(dataType, value *string) T) map[string]T {
	out := make(map[string]T, len(attrs))
	for k, v := range attrs {
		out[k] = mk(aws.String("String"), aws.String(v))
	}
	return out
}
