package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"websearch-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// maxTransactItems is the DynamoDB TransactWriteItems limit.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table for conversation state.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK returns the sort key for a message. Message IDs are time ordered,
// so sort key order is temporal order.
func msgSK(messageID string) string {
	return skPrefixMsg + messageID
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetHistory returns every stored message of a conversation in temporal
// order together with its turn counter. The META# item sorts before the
// MSG# items, so one query reads both.
func (c *Client) GetHistory(ctx context.Context, conversationID string) (domain.History, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: convPK(conversationID)},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var history domain.History
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return domain.History{}, fmt.Errorf("repository: GetHistory query: %w", err)
		}
		for _, item := range out.Items {
			sk, err := strAttr(item, "SK")
			if err != nil {
				return domain.History{}, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
			}
			switch {
			case sk == skMeta:
				turns, err := numAttr(item, "turns")
				if err != nil {
					return domain.History{}, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
				}
				history.Turns = turns
			case strings.HasPrefix(sk, skPrefixMsg):
				msg, err := itemToMessage(item)
				if err != nil {
					return domain.History{}, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
				}
				history.Messages = append(history.Messages, msg)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return history, nil
}

// SaveTurn deletes the removed messages, writes the added ones and bumps the
// conversation metadata in one transaction. The transaction only commits when
// the stored turn counter still equals expectedTurns; otherwise
// domain.ErrConversationConflict is returned.
func (c *Client) SaveTurn(ctx context.Context, conversationID string, expectedTurns int, removals []domain.RemoveMessage, added []domain.Message) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveTurn: conversation id is required")
	}
	if n := len(removals) + len(added) + 1; n > maxTransactItems {
		return fmt.Errorf("repository: SaveTurn: %d items exceed the transaction limit", n)
	}

	pk := convPK(conversationID)
	ttl := c.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(removals)+len(added)+1)

	for _, r := range removals {
		if r.ID == "" {
			return errors.New("repository: SaveTurn: removal id is required")
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(c.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pk},
					"SK": &types.AttributeValueMemberS{Value: msgSK(r.ID)},
				},
			},
		})
	}
	for _, m := range added {
		if m.ID == "" {
			return errors.New("repository: SaveTurn: message id is required")
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                messageItem(conversationID, m, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	values := map[string]types.AttributeValue{
		":cid": &types.AttributeValueMemberS{Value: conversationID},
		":ts":  &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	condition := "attribute_not_exists(turns)"
	if expectedTurns > 0 {
		condition = "turns = :expected"
		values[":expected"] = &types.AttributeValueMemberN{Value: strconv.Itoa(expectedTurns)}
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName: aws.String(c.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pk},
				"SK": &types.AttributeValueMemberS{Value: skMeta},
			},
			UpdateExpression:          aws.String("SET conversationId = :cid, lastActivity = :ts, #ttl = :ttl ADD turns :one"),
			ConditionExpression:       aws.String(condition),
			ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
			ExpressionAttributeValues: values,
		},
	})

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: SaveTurn: %w", domain.ErrConversationConflict)
		}
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// isConditionFailure reports whether a transaction was cancelled because one
// of its condition expressions did not hold.
func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	id, err := strAttr(item, "messageId")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{ID: id, Role: role, Content: content}
	if ts, err := strAttr(item, "createdAt"); err == nil {
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			msg.CreatedAt = parsed
		}
	}
	return msg, nil
}

func messageItem(conversationID string, m domain.Message, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
		"SK":             &types.AttributeValueMemberS{Value: msgSK(m.ID)},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		"messageId":      &types.AttributeValueMemberS{Value: m.ID},
		"role":           &types.AttributeValueMemberS{Value: m.Role},
		"content":        &types.AttributeValueMemberS{Value: m.Content},
		"createdAt":      &types.AttributeValueMemberS{Value: m.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func numAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	out, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: attribute %q: %w", key, err)
	}
	return out, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
