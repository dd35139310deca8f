package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"travel-funnel/internal/domain"
)

type fakeDynamo struct {
	updateErr       error
	updateCalls     int
	lastUpdateInput *dynamodb.UpdateItemInput
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateCalls++
	f.lastUpdateInput = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "leads-table")
	require.NoError(t, err)
	return c
}

func strValue(t *testing.T, vals map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := vals[key]
	require.True(t, ok, "missing expression value %s", key)
	s, ok := v.(*types.AttributeValueMemberS)
	require.True(t, ok, "expression value %s is not a string", key)
	return s.Value
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "leads-table")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestRecordFailure_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.RecordFailure(context.Background(), "lead-42", "card refused"))
	require.Equal(t, 1, db.updateCalls)

	in := db.lastUpdateInput
	require.Equal(t, "leads-table", *in.TableName)
	key := in.Key["PK"].(*types.AttributeValueMemberS)
	require.Equal(t, "LEAD#lead-42", key.Value)
	require.Equal(t, "status", in.ExpressionAttributeNames["#status"])
	require.Equal(t, "payment_failed", strValue(t, in.ExpressionAttributeValues, ":status"))
	require.Equal(t, "card refused", strValue(t, in.ExpressionAttributeValues, ":msg"))
}

func TestRecordFailure_TruncatesLongMessage(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	long := strings.Repeat("x", 600)
	require.NoError(t, c.RecordFailure(context.Background(), "lead-42", long))
	require.Len(t, strValue(t, db.lastUpdateInput.ExpressionAttributeValues, ":msg"), 255)
}

func TestRecordFailure_MissingLeadID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	err := c.RecordFailure(context.Background(), " ", "boom")
	require.Error(t, err)
}

func TestRecordFailure_UpdateError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("throttled")}
	c := mustNewClient(t, db)
	err := c.RecordFailure(context.Background(), "lead-42", "boom")
	require.Error(t, err)
	require.Contains(t, err.Error(), "RecordFailure")
}

func TestRecordOutcome_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.RecordOutcome(context.Background(), domain.LeadOutcome{
		LeadID:            "lead-42",
		Voucher:           "V1, V2",
		OrderID:           "777",
		DocumentLink:      "https://docs/777",
		PaymentConfirmID:  "pi_789",
		ProvisioningNotes: "esim: issued. detail: {}",
	})
	require.NoError(t, err)

	in := db.lastUpdateInput
	key := in.Key["PK"].(*types.AttributeValueMemberS)
	require.Equal(t, "LEAD#lead-42", key.Value)
	require.Equal(t, "completed", strValue(t, in.ExpressionAttributeValues, ":status"))
	require.Equal(t, "V1, V2", strValue(t, in.ExpressionAttributeValues, ":voucher"))
	require.Equal(t, "777", strValue(t, in.ExpressionAttributeValues, ":order"))
	require.Equal(t, "https://docs/777", strValue(t, in.ExpressionAttributeValues, ":link"))
	require.Equal(t, "pi_789", strValue(t, in.ExpressionAttributeValues, ":payment"))
	require.Equal(t, "esim: issued. detail: {}", strValue(t, in.ExpressionAttributeValues, ":notes"))
}

func TestRecordOutcome_MissingLeadID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	err := c.RecordOutcome(context.Background(), domain.LeadOutcome{})
	require.Error(t, err)
}

func TestRecordOutcome_UpdateError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("boom")}
	c := mustNewClient(t, db)
	err := c.RecordOutcome(context.Background(), domain.LeadOutcome{LeadID: "lead-42"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "RecordOutcome")
}
