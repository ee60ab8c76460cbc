// Package awspkg wraps the AWS SDK clients the engine uses: SNS fanout of
// lifecycle events, SQS intake feeding the projections, and Secrets
// Manager overlay for configuration.
package awspkg

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig resolves the SDK configuration from the environment. region
// overrides the ambient region when non-empty.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	if region != "" {
		return config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	return config.LoadDefaultConfig(ctx)
}
