// Package repository persists checkout outcomes to the leads table. The
// checkout flow only ever writes: a failure note when a step goes wrong,
// and the terminal outcome once payment has settled. Nothing reads back.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"travel-funnel/internal/domain"
)

const (
	statusPaymentFailed = "payment_failed"
	statusCompleted     = "completed"

	// maxErrorLen caps the persisted error note.
	maxErrorLen = 255
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Writer defines the lead-record operations consumed by the checkout flow.
type Writer interface {
	RecordFailure(ctx context.Context, leadID, message string) error
	RecordOutcome(ctx context.Context, outcome domain.LeadOutcome) error
}

// Client wraps the DynamoDB leads table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new leads Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// leadKey returns the partition key for a lead record.
func leadKey(leadID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "LEAD#" + leadID},
	}
}

// RecordFailure marks the lead as payment_failed with a truncated error
// note. Also used for issuance failures after a successful payment; a
// later RecordOutcome overwrites the status.
func (c *Client) RecordFailure(ctx context.Context, leadID, message string) error {
	if strings.TrimSpace(leadID) == "" {
		return errors.New("repository: RecordFailure: lead id is required")
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              leadKey(leadID),
		UpdateExpression: aws.String("SET #status = :status, last_error_message = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: statusPaymentFailed},
			":msg":    &types.AttributeValueMemberS{Value: truncate(message, maxErrorLen)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordFailure: %w", err)
	}
	return nil
}

// RecordOutcome writes the terminal checkout state: completed status,
// issuance voucher/order/link (possibly sentinels), payment confirmation,
// and the provisioning summary.
func (c *Client) RecordOutcome(ctx context.Context, outcome domain.LeadOutcome) error {
	if strings.TrimSpace(outcome.LeadID) == "" {
		return errors.New("repository: RecordOutcome: lead id is required")
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key:       leadKey(outcome.LeadID),
		UpdateExpression: aws.String("SET #status = :status, voucher = :voucher, order_id = :order, " +
			"document_link = :link, payment_confirmation_id = :payment, provisioning_notes = :notes"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: statusCompleted},
			":voucher": &types.AttributeValueMemberS{Value: outcome.Voucher},
			":order":   &types.AttributeValueMemberS{Value: outcome.OrderID},
			":link":    &types.AttributeValueMemberS{Value: outcome.DocumentLink},
			":payment": &types.AttributeValueMemberS{Value: outcome.PaymentConfirmID},
			":notes":   &types.AttributeValueMemberS{Value: outcome.ProvisioningNotes},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordOutcome: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
