package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/edgestore/cmd/edgectl/internal/config"
	"github.com/haivivi/edgestore/pkg/graph"
	"github.com/haivivi/edgestore/pkg/kv"
	"github.com/haivivi/edgestore/pkg/storage"
)

// session is an open store plus the edge façade over it.
type session struct {
	cfg   *config.Store
	store kv.Store
	edges *graph.EdgeSerialization

	// persist saves a memory store's snapshot. Nil for other backends.
	persist func(ctx context.Context) error
}

// selectedContext resolves -c, falling back to the current context.
func selectedContext() (config.Context, error) {
	cfg, err := GetConfig()
	if err != nil {
		return config.Context{}, err
	}
	return cfg.Context(contextName)
}

// openSession opens the store of the selected context. A positive pageSize
// overrides the context's page size.
func openSession(ctx context.Context, pageSize int) (*session, error) {
	c, err := selectedContext()
	if err != nil {
		return nil, err
	}
	storeCfg, err := c.Store()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: storeCfg}
	switch storeCfg.Backend {
	case config.BackendMemory:
		err = s.openMemory(ctx)
	case config.BackendBadger:
		s.store, err = kv.NewBadger(kv.BadgerOptions{Dir: storeCfg.Dir, Logger: slog.Default()})
	case config.BackendDynamoDB:
		var awsCfg aws.Config
		if awsCfg, err = loadAWSConfig(ctx, storeCfg); err == nil {
			s.store, err = kv.NewDynamoDB(newDynamoDBClient(awsCfg, storeCfg), kv.DynamoDBOptions{
				Table:          storeCfg.Table,
				ConsistentRead: storeCfg.ConsistentRead,
			})
		}
	default:
		err = fmt.Errorf("unsupported backend %q", storeCfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = storeCfg.PageSize
	}
	s.edges, err = graph.NewEdgeSerialization(s.store, &graph.Options{
		PageSize: pageSize,
		Logger:   slog.Default(),
	})
	if err != nil {
		s.store.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openMemory(ctx context.Context) error {
	mem := kv.NewMemory()
	s.store = mem
	if s.cfg.Snapshot == "" {
		return nil
	}

	var s3Client storage.S3Client
	if strings.HasPrefix(s.cfg.Snapshot, "s3://") {
		awsCfg, err := loadAWSConfig(ctx, s.cfg)
		if err != nil {
			return err
		}
		s3Client = newS3Client(awsCfg, s.cfg)
	}
	snap, err := storage.Locate(s.cfg.Snapshot, s3Client)
	if err != nil {
		return err
	}
	if err := mem.RestoreIfExists(ctx, snap); err != nil {
		return err
	}
	s.persist = func(ctx context.Context) error {
		return mem.Snapshot(ctx, snap)
	}
	return nil
}

// apply commits b and saves the snapshot, if any.
func (s *session) apply(ctx context.Context, b *kv.Batch) error {
	if err := s.store.Apply(ctx, b); err != nil {
		return err
	}
	if s.persist != nil {
		return s.persist(ctx)
	}
	return nil
}

// scope returns the --scope flag value, falling back to the context's scope.
func (s *session) scope(flag string) (graph.Scope, error) {
	if flag != "" {
		return graph.Scope(flag), nil
	}
	if s.cfg.Scope != "" {
		return graph.Scope(s.cfg.Scope), nil
	}
	return "", errors.New("no scope: pass --scope or set one with 'edgectl config set scope <scope>'")
}

func (s *session) Close() error {
	return s.store.Close()
}

func loadAWSConfig(ctx context.Context, cfg *config.Store) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func newDynamoDBClient(awsCfg aws.Config, cfg *config.Store) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

func newS3Client(awsCfg aws.Config, cfg *config.Store) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
}
