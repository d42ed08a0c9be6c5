// Package mongoq stores queues as MongoDB collections, one document per message.
package mongoq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

// pollInterval spaces Pop attempts on an empty collection.
const pollInterval = 50 * time.Millisecond

// message is the stored form of a queued payload.
type message struct {
	ID      bson.ObjectID `bson:"_id,omitempty"`
	Payload []byte        `bson:"payload"`
	At      time.Time     `bson:"at"`
}

// Broker keeps each queue in a collection of db.
type Broker struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the primary is reachable and returns a broker
// on database.
func Connect(ctx context.Context, uri, database string) (*Broker, error) {
	opts := options.Client().ApplyURI(uri)
	opts.SetWriteConcern(writeconcern.Majority())
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Broker{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (b *Broker) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// Declare creates the collection backing queue if it does not exist.
func (b *Broker) Declare(ctx context.Context, queue string) error {
	exists, err := b.exists(ctx, queue)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := b.db.CreateCollection(ctx, queue); err != nil {
		var cmdErr mongo.CommandError
		// NamespaceExists: another process declared it first.
		if errors.As(err, &cmdErr) && cmdErr.Code == 48 {
			return nil
		}
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// Depth returns the document count of queue; a missing collection reports ok=false.
func (b *Broker) Depth(ctx context.Context, queue string) (int64, bool, error) {
	exists, err := b.exists(ctx, queue)
	if err != nil || !exists {
		return 0, false, err
	}
	n, err := b.db.Collection(queue).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, false, fmt.Errorf("queue depth %s: %w", queue, err)
	}
	return n, true, nil
}

// Push stores a message at the tail of queue.
func (b *Broker) Push(ctx context.Context, queue string, payload []byte) error {
	_, err := b.db.Collection(queue).InsertOne(ctx, message{Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}

// Pop removes the oldest message of queue, polling up to timeout.
func (b *Broker) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "_id", Value: 1}})
	for {
		var msg message
		err := b.db.Collection(queue).FindOneAndDelete(ctx, bson.D{}, opts).Decode(&msg)
		if err == nil {
			return msg.Payload, true, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("pop %s: %w", queue, err)
		}
		if !time.Now().Before(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (b *Broker) exists(ctx context.Context, queue string) (bool, error) {
	names, err := b.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: queue}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	return len(names) > 0, nil
}
