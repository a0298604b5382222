// Package sequence mints monotonically increasing numbers from named
// counters. Each store increments atomically, so concurrent callers never
// receive the same value.
package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicrx/clinicrx/internal/platform/db"
	"github.com/clinicrx/clinicrx/internal/platform/mongostore"
)

// Prescription is the counter behind prescription numbers.
const Prescription = "prescription"

// Counter returns the next value of a named counter, starting at 1.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// FormatPrescriptionNumber renders n as RX-0001. Numbers past 9999 keep
// growing in width.
func FormatPrescriptionNumber(n int64) string {
	return fmt.Sprintf("RX-%04d", n)
}

// PGCounter increments a row in the counters table. Called inside
// db.WithTx it shares the caller's transaction, so a failed insert rolls the
// number back too.
type PGCounter struct {
	pool *pgxpool.Pool
}

func NewPGCounter(pool *pgxpool.Pool) *PGCounter {
	return &PGCounter{pool: pool}
}

const nextSQL = `INSERT INTO counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value`

func (c *PGCounter) Next(ctx context.Context, name string) (int64, error) {
	var v int64
	if err := db.Conn(ctx, c.pool).QueryRow(ctx, nextSQL, name).Scan(&v); err != nil {
		return 0, fmt.Errorf("next %s counter: %w", name, err)
	}
	return v, nil
}

// MongoCounter increments {_id: name, value} documents with findOneAndUpdate.
type MongoCounter struct {
	coll *mongo.Collection
}

func NewMongoCounter(coll *mongo.Collection) *MongoCounter {
	return &MongoCounter{coll: coll}
}

func (c *MongoCounter) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Value int64 `bson:"value"`
	}
	// The first increments of a new counter can race on the _id insert.
	err := mongostore.RetryOnDuplicateKey(mongostore.IndexID, func() error {
		return c.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": name},
			bson.M{"$inc": bson.M{"value": 1}},
			opts,
		).Decode(&doc)
	})
	if err != nil {
		return 0, fmt.Errorf("next %s counter: %w", name, err)
	}
	return doc.Value, nil
}

// MemoryCounter keeps counters in process memory.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name]++
	return c.values[name], nil
}
