package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hupe1980/roadkit/blobstore"
)

// ErrConcurrentModification is returned when another writer committed the
// same blob version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of *dynamodb.Client used by CommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// CommitStore versions every blob and records the current version of each
// name in DynamoDB with a conditional write. Object stores lack
// compare-and-swap; the table provides it.
//
// Version n of blob "x" is stored in the inner store as "x.v<n>.<uuid>"
// with n zero-padded to 20 digits; the uuid keeps racing writers from
// clobbering each other's object. Deleting writes a tombstone version.
//
// Table schema:
//   - Partition key: blob (string), "<baseURI>/<name>"
//   - Sort key: version (number)
//
// Example table:
//
//	aws dynamodb create-table \
//	  --table-name roadkit-commits \
//	  --attribute-definitions AttributeName=blob,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=blob,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	inner   blobstore.BlobStore
	ddb     DDBClient
	table   string
	baseURI string
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// NewCommitStore wraps inner. baseURI identifies the index, for example
// "s3://road-indexes/berlin".
func NewCommitStore(inner blobstore.BlobStore, ddb DDBClient, table, baseURI string) *CommitStore {
	return &CommitStore{inner: inner, ddb: ddb, table: table, baseURI: baseURI}
}

var versionSuffix = regexp.MustCompile(`^(.+)\.v\d{20}\.[0-9a-f-]{36}$`)

func versioned(name string, v uint64) string {
	return fmt.Sprintf("%s.v%020d.%s", name, v, uuid.NewString())
}

// commitInfo is the newest commit item of a blob. version 0 means the blob
// was never committed.
type commitInfo struct {
	version uint64
	path    string
	deleted bool
}

func (s *CommitStore) partition(name string) string {
	return s.baseURI + "/" + name
}

func (s *CommitStore) latest(ctx context.Context, name string) (commitInfo, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#b = :b"),
		ExpressionAttributeNames: map[string]string{
			"#b": "blob",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: s.partition(name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return commitInfo{}, fmt.Errorf("s3: query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return commitInfo{}, nil
	}

	item := resp.Items[0]
	vAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return commitInfo{}, errors.New("s3: commit item without numeric version")
	}
	v, err := strconv.ParseUint(vAttr.Value, 10, 64)
	if err != nil {
		return commitInfo{}, fmt.Errorf("s3: parse commit version: %w", err)
	}
	info := commitInfo{version: v}
	if p, ok := item["path"].(*types.AttributeValueMemberS); ok {
		info.path = p.Value
	}
	if d, ok := item["deleted"].(*types.AttributeValueMemberBOOL); ok {
		info.deleted = d.Value
	}
	return info, nil
}

func (s *CommitStore) commit(ctx context.Context, name string, v uint64, path string, deleted bool) error {
	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"blob":    &types.AttributeValueMemberS{Value: s.partition(name)},
			"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)},
			"path":    &types.AttributeValueMemberS{Value: path},
			"deleted": &types.AttributeValueMemberBOOL{Value: deleted},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#v)"),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return fmt.Errorf("%w: %s version %d", ErrConcurrentModification, name, v)
		}
		return fmt.Errorf("s3: commit %s: %w", name, err)
	}
	return nil
}

// Open opens the latest committed version of name.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	info, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.version == 0 || info.deleted {
		return nil, blobstore.ErrNotFound
	}
	return s.inner.Open(ctx, info.path)
}

// Put writes the next version of name and commits it. The data object is
// written first and removed again if the commit loses a race.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	info, err := s.latest(ctx, name)
	if err != nil {
		return err
	}
	next := info.version + 1
	path := versioned(name, next)
	if err := s.inner.Put(ctx, path, data); err != nil {
		return err
	}
	if err := s.commit(ctx, name, next, path, false); err != nil {
		_ = s.inner.Delete(ctx, path)
		return err
	}
	return nil
}

// Create buffers the blob and commits it on Close.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return &commitWritableBlob{ctx: ctx, store: s, name: name}, nil
}

// Delete commits a tombstone. Older versions stay in the inner store.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	info, err := s.latest(ctx, name)
	if err != nil {
		return err
	}
	if info.version == 0 || info.deleted {
		return nil
	}
	return s.commit(ctx, name, info.version+1, "", true)
}

// List returns the live names with the given prefix.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, k := range keys {
		m := versionSuffix.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		info, err := s.latest(ctx, name)
		if err != nil {
			return nil, err
		}
		if info.version > 0 && !info.deleted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type commitWritableBlob struct {
	ctx    context.Context
	store  *CommitStore
	name   string
	buf    bytes.Buffer
	closed atomic.Bool
}

func (w *commitWritableBlob) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *commitWritableBlob) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return io.ErrClosedPipe
	}
	return w.store.Put(w.ctx, w.name, w.buf.Bytes())
}

func (w *commitWritableBlob) Sync() error { return nil }
