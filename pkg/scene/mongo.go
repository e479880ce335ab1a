package scene

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/domainstack/pkg/errors"
)

// MongoConfig selects a MongoDB collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps scenes as documents in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "domainstack"
	}
	if cfg.Collection == "" {
		cfg.Collection = "scenes"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*Scene, error) {
	var sc Scene
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&sc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeNotFound, "scene %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	if err := sc.restore(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (m *MongoStore) Put(ctx context.Context, sc *Scene) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": sc.ID}, sc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put scene: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	return nil
}

func (m *MongoStore) List(ctx context.Context) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetProjection(bson.M{"_id": 1, "name": 1, "updated_at": 1, "layers.name": 1})
	cur, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var doc struct {
			Summary `bson:",inline"`
			Records []struct {
				Name string `bson:"name"`
			} `bson:"layers"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode scene: %w", err)
		}
		doc.Summary.Layers = len(doc.Records)
		out = append(out, doc.Summary)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return out, nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
