package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/flemzord/almond/internal/memory"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// document is the stored shape of a fragment.
type document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID string             `bson:"conversationId"`
	Role           string             `bson:"role"`
	Content        string             `bson:"content"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func toDocument(f memory.Fragment) document {
	id, err := primitive.ObjectIDFromHex(f.ID)
	if err != nil {
		id = primitive.NewObjectID()
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return document{
		ID:             id,
		ConversationID: f.ConversationID,
		Role:           string(f.Role),
		Content:        f.Content,
		CreatedAt:      created.UTC(),
	}
}

func (d document) fragment() memory.Fragment {
	return memory.Fragment{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		Role:           memory.Role(d.Role),
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
		Tier:           memory.TierShort,
	}
}

// Store is the short-form tier backed by two collections: the main one
// and the staging area used by batching.
type Store struct {
	main    *mongo.Collection
	staging *mongo.Collection
}

// NewStore binds a Store to the collections of db.
func NewStore(db *mongo.Database, collection, staging string) *Store {
	return &Store{
		main:    db.Collection(collection),
		staging: db.Collection(staging),
	}
}

// EnsureIndexes creates the conversation/time index on both collections.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}},
	}
	for _, c := range []*mongo.Collection{s.main, s.staging} {
		if _, err := c.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("mongo: create index on %s: %w", c.Name(), err)
		}
	}
	return nil
}

// Insert implements memory.ShortStore.
func (s *Store) Insert(ctx context.Context, f memory.Fragment) (memory.Fragment, error) {
	return insertInto(ctx, s.main, f, memory.TierShort)
}

func insertInto(ctx context.Context, c *mongo.Collection, f memory.Fragment, tier memory.Tier) (memory.Fragment, error) {
	doc := toDocument(f)
	if _, err := c.InsertOne(ctx, doc); err != nil {
		return memory.Fragment{}, fmt.Errorf("mongo: insert into %s: %w", c.Name(), err)
	}
	out := doc.fragment()
	out.Tier = tier
	return out, nil
}

// keywordFilter matches the conversation's documents whose content holds
// every keyword, case-insensitively. Keywords are matched literally.
func keywordFilter(conversationID string, keywords []string) bson.D {
	filter := conversationFilter(conversationID)
	if len(keywords) == 0 {
		return filter
	}
	clauses := make(bson.A, 0, len(keywords))
	for _, kw := range keywords {
		clauses = append(clauses, bson.D{{Key: "content", Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(kw),
			Options: "i",
		}}})
	}
	return append(filter, bson.E{Key: "$and", Value: clauses})
}

func conversationFilter(conversationID string) bson.D {
	if conversationID == "" {
		return bson.D{}
	}
	return bson.D{{Key: "conversationId", Value: conversationID}}
}

// Find implements memory.ShortStore.
func (s *Store) Find(ctx context.Context, conversationID string, keywords []string) ([]memory.Fragment, error) {
	return findIn(ctx, s.main, keywordFilter(conversationID, keywords), memory.TierShort)
}

func findIn(ctx context.Context, c *mongo.Collection, filter bson.D, tier memory.Tier) ([]memory.Fragment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find in %s: %w", c.Name(), err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode %s: %w", c.Name(), err)
	}
	out := make([]memory.Fragment, 0, len(docs))
	for _, d := range docs {
		f := d.fragment()
		f.Tier = tier
		out = append(out, f)
	}
	return out, nil
}

// Delete implements memory.ShortStore. IDs that are not valid object IDs
// cannot exist and report memory.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	return deleteFrom(ctx, s.main, id)
}

func deleteFrom(ctx context.Context, c *mongo.Collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return memory.ErrNotFound
	}
	res, err := c.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongo: delete from %s: %w", c.Name(), err)
	}
	if res.DeletedCount == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// List implements memory.ShortStore.
func (s *Store) List(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	return findIn(ctx, s.main, conversationFilter(conversationID), memory.TierShort)
}

// Stage implements memory.Stager.
func (s *Store) Stage(ctx context.Context, f memory.Fragment) (memory.Fragment, int, error) {
	stored, err := insertInto(ctx, s.staging, f, memory.TierStaged)
	if err != nil {
		return memory.Fragment{}, 0, err
	}
	n, err := s.staging.CountDocuments(ctx, conversationFilter(f.ConversationID))
	if err != nil {
		return memory.Fragment{}, 0, fmt.Errorf("mongo: count staged: %w", err)
	}
	return stored, int(n), nil
}

// Staged implements memory.Stager.
func (s *Store) Staged(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	return findIn(ctx, s.staging, conversationFilter(conversationID), memory.TierStaged)
}

// Unstage implements memory.Stager.
func (s *Store) Unstage(ctx context.Context, id string) error {
	return deleteFrom(ctx, s.staging, id)
}

// ClearStaged implements memory.Stager.
func (s *Store) ClearStaged(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("mongo: clear staged requires a conversation")
	}
	if _, err := s.staging.DeleteMany(ctx, conversationFilter(conversationID)); err != nil {
		return fmt.Errorf("mongo: clear staged: %w", err)
	}
	return nil
}

// Compile-time interface guards.
var (
	_ memory.ShortStore = (*Store)(nil)
	_ memory.Stager     = (*Store)(nil)
)
