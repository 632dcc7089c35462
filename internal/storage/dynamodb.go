package storage

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

	"github.com/amillerrr/video-publisher/pkg/models"
)

const videoSortKey = "METADATA"

// DynamoDBAPI is the subset of the DynamoDB client used by the repository.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// VideoRepository stores video records in DynamoDB.
type VideoRepository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

// videoItem is the table layout: one item per video under VIDEO#<id>/METADATA.
type videoItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	models.VideoRecord
}

// NewVideoRepository creates a VideoRepository from a DynamoDB client.
func NewVideoRepository(client DynamoDBAPI, tableName string) (*VideoRepository, error) {
	if tableName == "" {
		return nil, errors.New("DynamoDB table name is required")
	}
	return &VideoRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}, nil
}

func videoKey(videoID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "VIDEO#" + videoID},
		"sk": &types.AttributeValueMemberS{Value: videoSortKey},
	}
}

// CreateVideo inserts a new record at version 1.
func (r *VideoRepository) CreateVideo(ctx context.Context, video *models.VideoRecord) error {
	now := r.now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	video.Version = 1

	item, err := attributevalue.MarshalMap(videoItem{
		PK:          "VIDEO#" + video.ID,
		SK:          videoSortKey,
		VideoRecord: *video,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", models.ErrRecordExists, video.ID)
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a record by ID.
func (r *VideoRepository) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            videoKey(videoID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if result.Item == nil {
		return nil, models.ErrRecordNotFound
	}

	var item videoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	return &item.VideoRecord, nil
}

// UpdateVideo replaces the record if its stored version still equals
// video.Version, then bumps the version. A mismatch (or a deleted record)
// yields models.ErrVersionConflict.
func (r *VideoRepository) UpdateVideo(ctx context.Context, video *models.VideoRecord) error {
	expected := video.Version

	next := *video
	next.Version = expected + 1
	next.UpdatedAt = r.now().UTC()

	item, err := attributevalue.MarshalMap(videoItem{
		PK:          "VIDEO#" + video.ID,
		SK:          videoSortKey,
		VideoRecord: next,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(pk) AND #version = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s at version %d", models.ErrVersionConflict, video.ID, expected)
		}
		return fmt.Errorf("failed to update video: %w", err)
	}

	video.Version = next.Version
	video.UpdatedAt = next.UpdatedAt
	return nil
}

// Ping checks that the table is reachable.
func (r *VideoRepository) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	return err
}
