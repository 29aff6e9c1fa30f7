// Package idempotency guards every external write (calendar booking,
// payment event dispatch) with a conditional-put ledger, grounded on the
// teacher's internal/conversation/jobstore.go DynamoDB job-status store —
// repurposed here from tracking job state to a pure "has this key already
// been used" guard (spec.md §4.8 "Anti-loop and idempotence").
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrAlreadyUsed is returned when Reserve finds the key already recorded —
// the caller must skip the external write and treat the prior attempt as
// authoritative.
var ErrAlreadyUsed = errors.New("idempotency: key already used")

type ledgerItem struct {
	Key       string `dynamodbav:"key"`
	CreatedAt string `dynamodbav:"created_at"`
	TTL       int64  `dynamodbav:"ttl"`
}

// dynamoAPI narrows *dynamodb.Client to what this package needs, the same
// shape the teacher's internal/conversation/jobstore.go uses so tests can
// substitute a fake without a real table.
type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Ledger reserves idempotency keys via a conditional PutItem
// (attribute_not_exists), so two concurrent attempts at the same external
// write can never both proceed.
type Ledger struct {
	client dynamoAPI
	table  string
	ttl    time.Duration
}

func NewLedger(client dynamoAPI, table string, ttl time.Duration) *Ledger {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Ledger{client: client, table: table, ttl: ttl}
}

// Key builds a deterministic idempotency key scoped to a tenant, a
// conversation and the call-site purpose, so the same booking attempted
// twice in the same turn collapses to one external write.
func Key(tenantID int64, scope, discriminator string) string {
	return fmt.Sprintf("%d:%s:%s", tenantID, scope, discriminator)
}

// Reserve records the key if absent and returns nil, or ErrAlreadyUsed if
// another caller already reserved it.
func (l *Ledger) Reserve(ctx context.Context, key string) error {
	item, err := attributevalue.MarshalMap(ledgerItem{
		Key:       key,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		TTL:       time.Now().Add(l.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("idempotency: marshal item: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrAlreadyUsed
		}
		return fmt.Errorf("idempotency: reserve: %w", err)
	}
	return nil
}
