// Package archive stores raw provider fetch payloads in MongoDB so a
// transcript can be reprocessed later without re-spending provider credits.
// The archive is optional and best-effort: the worker treats a nil client as
// "archiving disabled" and never fails an episode over an archive write.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podnotes/pkg/domain"
)

// FetchDocument is one archived provider fetch, keyed by episode id.
type FetchDocument struct {
	EpisodeID  string                     `bson:"episode_id" json:"episode_id"`
	ShowID     string                     `bson:"show_id" json:"show_id"`
	GUID       string                     `bson:"guid" json:"guid"`
	ResultKind string                     `bson:"result_kind" json:"result_kind"`
	Transcript string                     `bson:"transcript,omitempty" json:"transcript,omitempty"`
	WordCount  int                        `bson:"word_count,omitempty" json:"word_count,omitempty"`
	Segments   []domain.TranscriptSegment `bson:"segments,omitempty" json:"segments,omitempty"`
	FetchedAt  time.Time                  `bson:"fetched_at" json:"fetched_at"`
}

// Client wraps the MongoDB collection holding archived fetches.
type Client struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewClient creates an archive client for the given database and collection.
func NewClient(connectionString, databaseName, collectionName string) (*Client, error) {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	return &Client{
		mongoClient: mongoClient,
		collection:  mongoClient.Database(databaseName).Collection(collectionName),
	}, nil
}

// Connect verifies connectivity to MongoDB.
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveFetch upserts the archived payload for an episode. Repeat fetches for
// the same episode replace the previous document.
func (c *Client) SaveFetch(ctx context.Context, doc *FetchDocument) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	filter := bson.M{"episode_id": doc.EpisodeID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("archive fetch for episode %s: %w", doc.EpisodeID, err)
	}
	return nil
}

// GetFetch loads the archived payload for an episode, or nil when absent.
func (c *Client) GetFetch(ctx context.Context, episodeID string) (*FetchDocument, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var doc FetchDocument
	err := c.collection.FindOne(ctx, bson.M{"episode_id": episodeID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load archived fetch for episode %s: %w", episodeID, err)
	}
	return &doc, nil
}
