package kv

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
)

// DynamoDB item layout (one item per cell):
//
//	pk  (B)    {family} 0x00 {row}
//	sk  (B)    {column}
//	ts  (N)    cell timestamp
//	del (BOOL) tombstone flag
//	val (B)    cell value, omitted when empty
//
// The table needs only the (pk HASH, sk RANGE) primary key.

const (
	attrPK    = "pk"
	attrSK    = "sk"
	attrTS    = "ts"
	attrDel   = "del"
	attrValue = "val"

	tableWaitTimeout = 2 * time.Minute
)

// DynamoDBClient abstracts the DynamoDB API operations used by [DynamoDB].
// The [dynamodb.Client] type satisfies this interface.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDB is a Store implementation backed by one DynamoDB table.
//
// Every mutation is a conditional PutItem that only succeeds when it
// supersedes the stored cell, so concurrent writers converge on the same
// last-write-wins result without read-modify-write round trips.
type DynamoDB struct {
	client         DynamoDBClient
	table          string
	consistentRead bool
}

// DynamoDBOptions configures the DynamoDB store.
type DynamoDBOptions struct {
	// Table is the table name. Required.
	Table string

	// ConsistentRead makes scans strongly consistent.
	ConsistentRead bool
}

// NewDynamoDB creates a DynamoDB-backed Store.
// The client should be pre-configured (credentials, region, endpoint).
func NewDynamoDB(client DynamoDBClient, opts DynamoDBOptions) (*DynamoDB, error) {
	if opts.Table == "" {
		return nil, errors.New("kv: DynamoDBOptions.Table is required")
	}
	return &DynamoDB{client: client, table: opts.Table, consistentRead: opts.ConsistentRead}, nil
}

func dynamoPK(family string, row []byte) ([]byte, error) {
	if family == "" || strings.IndexByte(family, 0) >= 0 {
		return nil, fmt.Errorf("kv: invalid family %q", family)
	}
	pk := make([]byte, 0, len(family)+1+len(row))
	pk = append(pk, family...)
	pk = append(pk, 0)
	return append(pk, row...), nil
}

func (d *DynamoDB) Apply(ctx context.Context, b *Batch) error {
	for _, mu := range b.Mutations() {
		if err := d.put(ctx, mu); err != nil {
			return err
		}
	}
	return nil
}

func (d *DynamoDB) put(ctx context.Context, mu Mutation) error {
	pk, err := dynamoPK(mu.Family, mu.Row)
	if err != nil {
		return err
	}
	item := map[string]types.AttributeValue{
		attrPK:  &types.AttributeValueMemberB{Value: pk},
		attrSK:  &types.AttributeValueMemberB{Value: mu.Column},
		attrTS:  &types.AttributeValueMemberN{Value: strconv.FormatInt(mu.Timestamp, 10)},
		attrDel: &types.AttributeValueMemberBOOL{Value: mu.Tombstone},
	}
	if !mu.Tombstone && len(mu.Value) > 0 {
		item[attrValue] = &types.AttributeValueMemberB{Value: mu.Value}
	}

	values := map[string]types.AttributeValue{
		":ts": &types.AttributeValueMemberN{Value: strconv.FormatInt(mu.Timestamp, 10)},
	}
	// A tombstone wins ties; a value only replaces a value at the same
	// timestamp.
	cond := "attribute_not_exists(#ts) OR #ts <= :ts"
	if !mu.Tombstone {
		cond = "attribute_not_exists(#ts) OR #ts < :ts OR (#ts = :ts AND #del = :false)"
		values[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	names := map[string]string{"#ts": attrTS}
	if !mu.Tombstone {
		names["#del"] = attrDel
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.table),
		Item:                      item,
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// A newer cell is already stored.
			return nil
		}
		return fmt.Errorf("kv: dynamodb put: %w", err)
	}
	return nil
}

func (d *DynamoDB) Scan(ctx context.Context, req ScanRequest) ([]Column, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	pk, err := dynamoPK(req.Family, req.Row)
	if err != nil {
		return nil, err
	}
	keyCond := "#pk = :pk"
	names := map[string]string{"#pk": attrPK}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberB{Value: pk},
	}
	if len(req.Start) > 0 {
		keyCond += " AND #sk >= :start"
		names["#sk"] = attrSK
		values[":start"] = &types.AttributeValueMemberB{Value: req.Start}
	}

	var out []Column
	var startKey map[string]types.AttributeValue
	for len(out) < req.Limit {
		resp, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.table),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
			Limit:                     aws.Int32(int32(req.Limit - len(out))),
			ConsistentRead:            aws.Bool(d.consistentRead),
			ScanIndexForward:          aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("kv: dynamodb query: %w", err)
		}
		for _, item := range resp.Items {
			col, tomb, err := decodeDynamoItem(item)
			if err != nil {
				return nil, err
			}
			if !tomb {
				out = append(out, col)
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}

func decodeDynamoItem(item map[string]types.AttributeValue) (Column, bool, error) {
	var col Column
	sk, ok := item[attrSK].(*types.AttributeValueMemberB)
	if !ok {
		return col, false, errors.New("kv: dynamodb item without binary sk")
	}
	ts, ok := item[attrTS].(*types.AttributeValueMemberN)
	if !ok {
		return col, false, errors.New("kv: dynamodb item without numeric ts")
	}
	n, err := strconv.ParseInt(ts.Value, 10, 64)
	if err != nil {
		return col, false, fmt.Errorf("kv: dynamodb item ts: %w", err)
	}
	col.Name = sk.Value
	col.Timestamp = n
	if v, ok := item[attrValue].(*types.AttributeValueMemberB); ok {
		col.Value = v.Value
	}
	del, _ := item[attrDel].(*types.AttributeValueMemberBOOL)
	return col, del != nil && del.Value, nil
}

// Close is a no-op; the client is owned by the caller.
func (d *DynamoDB) Close() error {
	return nil
}

// CreateDynamoDBTable creates a pay-per-request table with the key schema
// the DynamoDB store expects and waits until it is active. An existing table
// is left untouched.
func CreateDynamoDBTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeB},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeB},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("kv: create table %s: %w", table, err)
		}
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("kv: wait for table %s: %w", table, err)
	}
	return nil
}
