package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rizara/luxe-api/internal/domain"
	"github.com/rizara/luxe-api/internal/pkg/id"
)

const (
	otpSKPrefix     = "otp#"
	attemptSKPrefix = "attempt#"
)

// OTPRepo manages one-time codes and issuance attempt events.
// PK: email. Code records use SK "otp#<purpose>", so a PutItem on the same
// key atomically replaces any prior code for the (email, purpose) tuple.
// Attempt events use SK "attempt#<ulid>" and exist only for rate limiting.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func otpSK(purpose domain.OTPPurpose) string {
	return otpSKPrefix + string(purpose)
}

// Put inserts a code record, replacing any existing record for the same
// (email, purpose). The overwrite is a single atomic write — there is no
// delete-then-insert window for concurrent issuers to race through.
func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	rec.SK = otpSK(rec.Purpose)
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "sk", otpSK(purpose)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkVerified flips verified false -> true for the record still holding
// code. The conditional write makes consumption single-use and pins it to
// the code the caller matched: a second caller, or a caller whose record was
// replaced by a concurrent reissue, loses the race and gets
// domain.ErrOTPInvalid, never a second success.
func (r *OTPRepo) MarkVerified(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "sk", otpSK(purpose)),
		UpdateExpression:    aws.String("SET verified = :t"),
		ConditionExpression: aws.String("attribute_exists(email) AND verified = :f AND code = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
			":c": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp consumed, replaced or missing: %w", domain.ErrOTPInvalid)
		}
		return err
	}
	return nil
}

func (r *OTPRepo) Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "sk", otpSK(purpose)),
	})
	return err
}

// DeleteIfCode removes the code record only while it still holds code. When
// a concurrent reissue has already replaced the record, the fresh code is
// left untouched and the call is a no-op.
func (r *OTPRepo) DeleteIfCode(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "sk", otpSK(purpose)),
		ConditionExpression: aws.String("code = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return err
	}
	return nil
}

// RecordAttempt stores one issuance attempt event for rate limiting and
// returns its sort key so a denied reservation can be released. The event
// carries its own TTL so abandoned attempts age out of the table.
func (r *OTPRepo) RecordAttempt(ctx context.Context, email string, at time.Time, ttl time.Duration) (string, error) {
	sk := attemptSKPrefix + id.New()
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"email":      &types.AttributeValueMemberS{Value: email},
			"sk":         &types.AttributeValueMemberS{Value: sk},
			"created_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Add(ttl).Unix(), 10)},
		},
	})
	if err != nil {
		return "", err
	}
	return sk, nil
}

// ReleaseAttempt removes a previously recorded attempt event. Used when the
// reservation it represents was denied, so a denied request does not count
// against the window it was rejected from.
func (r *OTPRepo) ReleaseAttempt(ctx context.Context, email, sk string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "sk", sk),
	})
	return err
}

// CountAttemptsSince returns how many issuance attempts exist for the email
// with created_at >= since, and the Unix timestamp of the oldest of them
// (zero when there are none).
func (r *OTPRepo) CountAttemptsSince(ctx context.Context, email string, since time.Time) (int, int64, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("email = :e AND begins_with(sk, :p)"),
		FilterExpression:       aws.String("created_at >= :s"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
			":p": &types.AttributeValueMemberS{Value: attemptSKPrefix},
			":s": &types.AttributeValueMemberN{Value: strconv.FormatInt(since.Unix(), 10)},
		},
	})
	if err != nil {
		return 0, 0, err
	}
	var oldest int64
	for _, item := range out.Items {
		n, ok := item["created_at"].(*types.AttributeValueMemberN)
		if !ok {
			continue
		}
		ts, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			continue
		}
		if oldest == 0 || ts < oldest {
			oldest = ts
		}
	}
	return len(out.Items), oldest, nil
}

// DeleteExpired removes every item (code records and attempt events) whose
// expires_at has passed. DynamoDB TTL does this eventually; the sweep keeps
// the table tight and gives callers a removal count. Idempotent — safe to
// run concurrently with live issuance and verification.
func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("expires_at < :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			email, ok1 := item["email"].(*types.AttributeValueMemberS)
			sk, ok2 := item["sk"].(*types.AttributeValueMemberS)
			if !ok1 || !ok2 {
				continue
			}
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       compositeKey("email", email.Value, "sk", sk.Value),
			}); err != nil {
				return removed, err
			}
			removed++
		}
		if out.LastEvaluatedKey == nil {
			return removed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
