package proofblob

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// Store keeps proof images in GridFS. The returned path is the hex
// file ID and is the stable reference persisted with the proof row.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Load(ctx context.Context, proofPath string) ([]byte, error)
}

type store struct {
	db *mongo.Database
}

func New(client *mongo.Client, dbName string) Store {
	return &store{db: client.Database(dbName)}
}

func (s *store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	bucket, err := gridfs.NewBucket(s.db)
	if err != nil {
		return "", err
	}

	stream, err := bucket.OpenUploadStream(filename)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Close()
		return "", err
	}
	if err := stream.Close(); err != nil {
		return "", err
	}

	return stream.FileID.(primitive.ObjectID).Hex(), nil
}

func (s *store) Load(ctx context.Context, proofPath string) ([]byte, error) {
	bucket, err := gridfs.NewBucket(s.db)
	if err != nil {
		return nil, err
	}

	objID, err := primitive.ObjectIDFromHex(proofPath)
	if err != nil {
		return nil, err
	}

	stream, err := bucket.OpenDownloadStream(objID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return io.ReadAll(stream)
}
