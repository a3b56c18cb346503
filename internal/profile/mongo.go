package profile

import (
	"context"
	"crypto/tls"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/almahub/backend/internal/models"
)

// MongoStore is the Mongo-backed primary tier. Documents live in the
// "profiles" collection, keyed by the identity provider UID.
type MongoStore struct {
	client      *mongo.Client
	db          *mongo.Database
	profilesCol *mongo.Collection
}

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	col := db.Collection("profiles")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoStore{
		client:      client,
		db:          db,
		profilesCol: col,
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Get(ctx context.Context, uid string) (models.Document, error) {
	var raw bson.M
	err := s.profilesCol.FindOne(ctx, bson.M{"uid": uid}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	delete(raw, "_id")
	doc := make(models.Document, len(raw))
	for k, v := range raw {
		doc[k] = v
	}
	return doc, nil
}

func (s *MongoStore) Set(ctx context.Context, uid string, doc models.Document, merge bool) error {
	if !merge {
		_, err := s.profilesCol.ReplaceOne(
			ctx,
			bson.M{"uid": uid},
			doc,
			options.Replace().SetUpsert(true),
		)
		return err
	}

	set := bson.M{}
	for k, v := range doc {
		if k == models.FieldUID {
			continue
		}
		set[k] = v
	}

	_, err := s.profilesCol.UpdateOne(
		ctx,
		bson.M{"uid": uid},
		bson.M{"$set": set, "$setOnInsert": bson.M{"uid": uid}},
		options.Update().SetUpsert(true),
	)
	return err
}
