// Package mongo is the alternate Document Store backend, selected with
// STORE_DRIVER=mongo. Collections mirror the relational tables and carry the
// same uniqueness rules through indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

const (
	colInterviews  = "interviews"
	colInvitations = "invitations"
	colUsers       = "users"
	colMessages    = "chat_messages"
	colFeedback    = "feedback"
	colJobs        = "feedback_jobs"
	colIdentities  = "identities"
)

var (
	_ domain.InterviewRepository   = (*InterviewRepo)(nil)
	_ domain.InvitationRepository  = (*InvitationRepo)(nil)
	_ domain.UserRepository        = (*UserRepo)(nil)
	_ domain.TranscriptRepository  = (*TranscriptRepo)(nil)
	_ domain.FeedbackRepository    = (*FeedbackRepo)(nil)
	_ domain.FeedbackJobRepository = (*FeedbackJobRepo)(nil)
	_ domain.IdentityRepository    = (*IdentityRepo)(nil)
)

// Store owns the client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("op=mongo.connect: %w: uri and database are required", domain.ErrInvalidArgument)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("op=mongo.connect: %w", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("op=mongo.connect: %w", err)
	}
	return &Store{client: c, db: c.Database(database)}, nil
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// EnsureIndexes creates the uniqueness and lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "emailLower", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colIdentities: {
			{Keys: bson.D{{Key: "subject", Value: 1}}},
		},
		colInterviews: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colInvitations: {
			{Keys: bson.D{{Key: "invitationToken", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "interviewId", Value: 1}, {Key: "recipientId", Value: 1}}},
			{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colMessages: {
			{Keys: bson.D{{Key: "interviewId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		colFeedback: {
			{Keys: bson.D{{Key: "interviewId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colJobs: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("op=mongo.ensure_indexes: %s: %w", col, err)
		}
	}
	return nil
}

// Repos returns every repository bound to this store.
func (s *Store) Repos() Repos {
	return Repos{
		Interviews:  &InterviewRepo{col: s.db.Collection(colInterviews)},
		Invitations: &InvitationRepo{col: s.db.Collection(colInvitations)},
		Users:       &UserRepo{col: s.db.Collection(colUsers)},
		Transcripts: &TranscriptRepo{col: s.db.Collection(colMessages)},
		Feedback:    &FeedbackRepo{col: s.db.Collection(colFeedback)},
		Jobs:        &FeedbackJobRepo{col: s.db.Collection(colJobs)},
		Identities:  &IdentityRepo{col: s.db.Collection(colIdentities)},
	}
}

// Repos groups the collection-backed repositories.
type Repos struct {
	Interviews  *InterviewRepo
	Invitations *InvitationRepo
	Users       *UserRepo
	Transcripts *TranscriptRepo
	Feedback    *FeedbackRepo
	Jobs        *FeedbackJobRepo
	Identities  *IdentityRepo
}

func startSpan(ctx context.Context, col, name string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("repo.mongo").Start(ctx, name)
	span.SetAttributes(attribute.String("db.system", "mongodb"), attribute.String("db.mongodb.collection", col))
	return ctx, span
}

// dbErr maps driver errors onto the domain taxonomy.
func dbErr(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("op=%s: %w: %v", op, domain.ErrConflict, err)
	default:
		return fmt.Errorf("op=%s: %w", op, err)
	}
}

func decodeAll[D interface{ toDomain() (T, error) }, T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
