package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-delivery/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoQuestionRepository reads question bank content from a MongoDB collection.
type MongoQuestionRepository struct {
	coll *mongo.Collection
}

// NewMongoQuestionRepository creates a new MongoQuestionRepository.
func NewMongoQuestionRepository(coll *mongo.Collection) *MongoQuestionRepository {
	return &MongoQuestionRepository{coll: coll}
}

// questionDocument is the stored shape. Ids may be ObjectIDs or plain strings
// and the answer may be stored as a string or a number.
type questionDocument struct {
	ID            bson.RawValue  `bson:"_id"`
	QuestionText  string         `bson:"questionText"`
	QuestionType  string         `bson:"questionType"`
	Options       []model.Option `bson:"options"`
	CorrectAnswer bson.RawValue  `bson:"correctAnswer,omitempty"`
	Explanation   string         `bson:"explanation,omitempty"`
}

// GetByIDs resolves the given question ids. Hex ids are matched both as
// ObjectIDs and as strings.
func (r *MongoQuestionRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Question, error) {
	out := make(map[string]*model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	in := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		in = append(in, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			in = append(in, oid)
		}
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": in}})
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}

	var docs []questionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	for _, d := range docs {
		q := d.normalize()
		out[q.ID] = q
	}
	return out, nil
}

// Upsert stores a question under its string id.
func (r *MongoQuestionRepository) Upsert(ctx context.Context, q *model.Question) error {
	doc := bson.M{
		"_id":          q.ID,
		"questionText": q.QuestionText,
		"questionType": string(q.QuestionType),
		"options":      q.Options,
	}
	if q.CorrectAnswer != "" {
		doc["correctAnswer"] = q.CorrectAnswer
	}
	if q.Explanation != "" {
		doc["explanation"] = q.Explanation
	}

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": q.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

func (d questionDocument) normalize() *model.Question {
	return &model.Question{
		ID:            rawToString(d.ID),
		QuestionText:  d.QuestionText,
		QuestionType:  model.QuestionType(strings.ToUpper(d.QuestionType)),
		Options:       d.Options,
		CorrectAnswer: rawToString(d.CorrectAnswer),
		Explanation:   d.Explanation,
	}
}

func rawToString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	case bsontype.Int32:
		return fmt.Sprintf("%d", v.Int32())
	case bsontype.Int64:
		return fmt.Sprintf("%d", v.Int64())
	case bsontype.Double:
		return fmt.Sprintf("%g", v.Double())
	default:
		return ""
	}
}
