package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one collection per table. The table key is stored both
// as _id and under its own column name so records read back unchanged.
//
// MongoDB has no foreign keys: deleting a user leaves its loans and
// notifications in place.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (m *MongoStore) Select(ctx context.Context, table Table, q Query) ([]Record, error) {
	filter := bson.M{}
	for k, v := range q.Filter {
		filter[k] = v
	}

	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if len(q.Columns) > 0 {
		projection := bson.M{"_id": 0}
		for _, col := range q.Columns {
			projection[col] = 1
		}
		opts.SetProjection(projection)
	}

	cursor, err := m.db.Collection(table.Name).Find(ctx, filter, opts)
	if err != nil {
		return nil, opError(OpSelect, table, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, opError(OpSelect, table, err)
	}

	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

func (m *MongoStore) Upsert(ctx context.Context, table Table, records ...Record) error {
	coll := m.db.Collection(table.Name)
	for _, rec := range records {
		id, err := keyOf(table, rec)
		if err != nil {
			return opError(OpUpsert, table, err)
		}

		set := bson.M{}
		for k, v := range rec {
			set[k] = v
		}
		set[table.Key] = id

		_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
		if err != nil {
			return opError(OpUpsert, table, fmt.Errorf("upsert %s %s: %w", table.Name, id, err))
		}
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, table Table, id string) error {
	if _, err := m.db.Collection(table.Name).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return opError(OpDelete, table, err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

func fromDocument(doc bson.M) Record {
	rec := make(Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		switch x := v.(type) {
		case primitive.DateTime:
			rec[k] = x.Time()
		case int32:
			rec[k] = int64(x)
		default:
			rec[k] = v
		}
	}
	return rec
}
