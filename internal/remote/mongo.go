package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vytor/kotoflash/internal/logger"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoStore keeps one document per path, keyed by _id. Subscriptions use
// change streams, which need a replica set.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *logger.Logger
}

type mongoDocument struct {
	Path      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
	Origin    string    `bson:"origin"`
}

func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	log := logger.Default().WithPrefix("remote.mongo")

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetRetryWrites(true).
		SetRetryReads(true)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		log.Error("failed to connect: %v", err)
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		// Offline at startup is expected; the driver reconnects on demand.
		log.Warn("could not verify mongo connection: %v", err)
	} else {
		log.Info("connected to mongo: database=%s collection=%s", cfg.Database, cfg.Collection)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		log:    log,
	}, nil
}

func (s *MongoStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	var doc mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get %s: %v", path, err)
		return nil, fmt.Errorf("get document %s: %w", path, err)
	}
	out := doc.toDocument()
	return &out, nil
}

func (s *MongoStore) SetDocument(ctx context.Context, path string, doc Document) error {
	record := mongoDocument{
		Path:      path,
		Data:      doc.Data,
		UpdatedAt: doc.UpdatedAt.UTC(),
		Origin:    doc.Origin,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": path}, record, opts); err != nil {
		s.log.Error("failed to set %s: %v", path, err)
		return fmt.Errorf("set document %s: %w", path, err)
	}
	s.log.Debug("document written: path=%s bytes=%d", path, len(doc.Data))
	return nil
}

type changeEvent struct {
	FullDocument *mongoDocument `bson:"fullDocument"`
}

func (s *MongoStore) Subscribe(ctx context.Context, path string, onChange func(Document)) (Unsubscribe, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: path}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.coll.Watch(watchCtx, pipeline, opts)
	if err != nil {
		cancel()
		s.log.Error("failed to watch %s: %v", path, err)
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				s.log.Warn("failed to decode change event: %v", err)
				continue
			}
			if ev.FullDocument == nil {
				continue
			}
			onChange(ev.FullDocument.toDocument())
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("change stream for %s ended: %v", path, err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d mongoDocument) toDocument() Document {
	return Document{Path: d.Path, Data: d.Data, UpdatedAt: d.UpdatedAt, Origin: d.Origin}
}
