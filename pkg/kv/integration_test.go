//go:build integration

package kv_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/haivivi/edgestore/pkg/kv"
	"github.com/haivivi/edgestore/pkg/storage"
)

// startLocalStack runs LocalStack for the test and returns an AWS config
// pointing at it. Requires Docker.
func startLocalStack(t *testing.T) (aws.Config, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	if err != nil {
		t.Fatalf("start localstack: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminate localstack: %v", err)
		}
	})

	hostPort, err := container.PortEndpoint(ctx, "4566/tcp", "")
	if err != nil {
		t.Fatalf("localstack endpoint: %v", err)
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		})),
	)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	return cfg, "http://" + hostPort
}

func TestDynamoDBStore_Integration(t *testing.T) {
	cfg, endpoint := startLocalStack(t)
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	var n atomic.Int32
	runStoreSuite(t, func(t *testing.T) kv.Store {
		t.Helper()
		table := fmt.Sprintf("edges-%d", n.Add(1))
		if err := kv.CreateDynamoDBTable(context.Background(), client, table); err != nil {
			t.Fatal(err)
		}
		// A second create is a no-op.
		if err := kv.CreateDynamoDBTable(context.Background(), client, table); err != nil {
			t.Fatal(err)
		}
		s, err := kv.NewDynamoDB(client, kv.DynamoDBOptions{Table: table, ConsistentRead: true})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestS3Snapshot_Integration(t *testing.T) {
	cfg, endpoint := startLocalStack(t)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	ctx := context.Background()
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("snapshots")}); err != nil {
		t.Fatal(err)
	}

	snap, err := storage.Locate("s3://snapshots/acme/edges.snap", client)
	if err != nil {
		t.Fatal(err)
	}

	src := kv.NewMemory()
	apply(t, src, func(b *kv.Batch) {
		b.Put("f", []byte("r"), []byte("a"), nil, 1)
		b.Put("f", []byte("r"), []byte("b"), nil, 1)
		b.Delete("f", []byte("r"), []byte("b"), 2)
	})
	if err := src.Snapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	dst := kv.NewMemory()
	if err := dst.Restore(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if got := names(scan(t, dst, "f", "r", nil, 10)); !equal(got, []string{"a"}) {
		t.Fatalf("restored columns = %v, want [a]", got)
	}
}
