package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/config"
)

// Dynamo wraps the DynamoDB client and the hand-off table name.
type Dynamo struct {
	Client *dynamodb.Client
	Table  string
}

// NewDynamo builds a client. Local mode skips LoadDefaultConfig, which queries
// IMDS and hangs outside AWS, and creates the table when missing.
func NewDynamo(ctx context.Context, cfg config.DynamoConfig, logger *zap.Logger) (*Dynamo, error) {
	var client *dynamodb.Client
	if cfg.Mode == config.DynamoModeLocal {
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	d := &Dynamo{Client: client, Table: cfg.Table}
	if cfg.Mode == config.DynamoModeLocal {
		if err := d.ensureTable(ctx, logger); err != nil {
			return nil, err
		}
	}
	logger.Info("dynamodb client ready", zap.String("mode", cfg.Mode), zap.String("table", cfg.Table))
	return d, nil
}

// Ping verifies the table is reachable.
func (d *Dynamo) Ping(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return errors.New("dynamodb not configured")
	}
	_, err := d.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.Table)})
	return err
}

func (d *Dynamo) ensureTable(ctx context.Context, logger *zap.Logger) error {
	if _, err := d.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.Table)}); err == nil {
		return nil
	}
	_, err := d.Client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.Table),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", d.Table, err)
	}
	logger.Info("dynamodb table created", zap.String("table", d.Table))
	return nil
}
