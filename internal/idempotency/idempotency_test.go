package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type mockDynamo struct {
	putInput *dynamodb.PutItemInput
	putErr   error
}

func (m *mockDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestReservePersistsConditionalPut(t *testing.T) {
	mock := &mockDynamo{}
	ledger := NewLedger(mock, "idempotency_keys", time.Hour)

	key := Key(7, "booking", "conv-1:slot-3")
	if err := ledger.Reserve(context.Background(), key); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}

	if mock.putInput == nil {
		t.Fatal("expected PutItem to be called")
	}
	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(#k)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}

	var stored ledgerItem
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("unmarshal stored item: %v", err)
	}
	if stored.Key != key {
		t.Fatalf("expected key %q, got %q", key, stored.Key)
	}
	if stored.TTL <= time.Now().Unix() {
		t.Fatal("expected TTL to be in the future")
	}
}

func TestReserveTranslatesConditionalCheckFailure(t *testing.T) {
	mock := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	ledger := NewLedger(mock, "idempotency_keys", time.Hour)

	err := ledger.Reserve(context.Background(), Key(7, "booking", "conv-1:slot-3"))
	if err != ErrAlreadyUsed {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}
