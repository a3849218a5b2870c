package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fairyhunter13/ai-mock-interviewer/internal/domain"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}

// InterviewRepo stores interview definitions.
type InterviewRepo struct{ col *mongo.Collection }

func (r *InterviewRepo) Create(ctx domain.Context, iv domain.Interview) (string, error) {
	ctx, span := startSpan(ctx, colInterviews, "interviews.Create")
	defer span.End()
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, fromInterview(iv)); err != nil {
		return "", dbErr("interview.create", err)
	}
	return iv.ID, nil
}

func (r *InterviewRepo) Get(ctx domain.Context, id string) (domain.Interview, error) {
	ctx, span := startSpan(ctx, colInterviews, "interviews.Get")
	defer span.End()
	var d interviewDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return domain.Interview{}, dbErr("interview.get", err)
	}
	iv, err := d.toDomain()
	if err != nil {
		return domain.Interview{}, dbErr("interview.get", err)
	}
	return iv, nil
}

func (r *InterviewRepo) find(ctx domain.Context, name string, filter bson.M, opts *options.FindOptions) ([]domain.Interview, error) {
	ctx, span := startSpan(ctx, colInterviews, "interviews."+name)
	defer span.End()
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, dbErr("interview.list", err)
	}
	out, err := decodeAll[interviewDoc, domain.Interview](ctx, cur)
	if err != nil {
		return nil, dbErr("interview.list", err)
	}
	return out, nil
}

func (r *InterviewRepo) ListAll(ctx domain.Context) ([]domain.Interview, error) {
	return r.find(ctx, "ListAll", bson.M{}, options.Find().SetSort(newestFirst))
}

func (r *InterviewRepo) ListAdminCreated(ctx domain.Context) ([]domain.Interview, error) {
	return r.find(ctx, "ListAdminCreated", bson.M{"isAdminCreated": true}, options.Find().SetSort(newestFirst))
}

func (r *InterviewRepo) ListByCreator(ctx domain.Context, userID string) ([]domain.Interview, error) {
	return r.find(ctx, "ListByCreator", bson.M{"createdBy": userID}, options.Find().SetSort(newestFirst))
}

func (r *InterviewRepo) ListFinalized(ctx domain.Context, excludeUserID string, limit int) ([]domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{"finalized": true, "createdBy": bson.M{"$ne": excludeUserID}}
	return r.find(ctx, "ListFinalized", filter, options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

func (r *InterviewRepo) SetFinalized(ctx domain.Context, id string, finalized bool) error {
	ctx, span := startSpan(ctx, colInterviews, "interviews.SetFinalized")
	defer span.End()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"finalized": finalized}})
	if err != nil {
		return dbErr("interview.set_finalized", err)
	}
	if res.MatchedCount == 0 {
		return dbErr("interview.set_finalized", mongo.ErrNoDocuments)
	}
	return nil
}

// InvitationRepo stores the invitation ledger.
type InvitationRepo struct{ col *mongo.Collection }

func (r *InvitationRepo) Create(ctx domain.Context, inv domain.Invitation) (string, error) {
	ctx, span := startSpan(ctx, colInvitations, "invitations.Create")
	defer span.End()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, fromInvitation(inv)); err != nil {
		return "", dbErr("invitation.create", err)
	}
	return inv.ID, nil
}

func (r *InvitationRepo) one(ctx domain.Context, name, op string, filter bson.M, opts ...*options.FindOneOptions) (domain.Invitation, error) {
	ctx, span := startSpan(ctx, colInvitations, "invitations."+name)
	defer span.End()
	var d invitationDoc
	if err := r.col.FindOne(ctx, filter, opts...).Decode(&d); err != nil {
		return domain.Invitation{}, dbErr(op, err)
	}
	inv, err := d.toDomain()
	if err != nil {
		return domain.Invitation{}, dbErr(op, err)
	}
	return inv, nil
}

func (r *InvitationRepo) list(ctx domain.Context, name string, filter bson.M) ([]domain.Invitation, error) {
	ctx, span := startSpan(ctx, colInvitations, "invitations."+name)
	defer span.End()
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, dbErr("invitation.list", err)
	}
	out, err := decodeAll[invitationDoc, domain.Invitation](ctx, cur)
	if err != nil {
		return nil, dbErr("invitation.list", err)
	}
	return out, nil
}

func (r *InvitationRepo) Get(ctx domain.Context, id string) (domain.Invitation, error) {
	return r.one(ctx, "Get", "invitation.get", bson.M{"_id": id})
}

func (r *InvitationRepo) FindByToken(ctx domain.Context, interviewID, token string) (domain.Invitation, error) {
	return r.one(ctx, "FindByToken", "invitation.find_by_token", bson.M{"interviewId": interviewID, "invitationToken": token})
}

func (r *InvitationRepo) FindByRecipient(ctx domain.Context, interviewID, recipientID string) (domain.Invitation, error) {
	return r.one(ctx, "FindByRecipient", "invitation.find_by_recipient",
		bson.M{"interviewId": interviewID, "recipientId": recipientID},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (r *InvitationRepo) ListByRecipient(ctx domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListByRecipient", bson.M{"recipientId": userID})
}

func (r *InvitationRepo) ListBySender(ctx domain.Context, userID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListBySender", bson.M{"senderId": userID})
}

func (r *InvitationRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.Invitation, error) {
	return r.list(ctx, "ListByInterview", bson.M{"interviewId": interviewID})
}

// Advance is a conditional update on the predecessor set, so it never moves a
// document backwards even under concurrent writers.
func (r *InvitationRepo) Advance(ctx domain.Context, id string, to domain.InvitationStatus, at time.Time) (bool, error) {
	ctx, span := startSpan(ctx, colInvitations, "invitations.Advance")
	defer span.End()
	filter, update, ok := advanceUpdate(id, to, at)
	if !ok {
		return false, nil
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, dbErr("invitation.advance", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, dbErr("invitation.advance", err)
	}
	if n == 0 {
		return false, dbErr("invitation.advance", mongo.ErrNoDocuments)
	}
	return false, nil
}

func advanceUpdate(id string, to domain.InvitationStatus, at time.Time) (bson.M, bson.M, bool) {
	preds := to.Predecessors()
	if len(preds) == 0 {
		return nil, nil, false
	}
	from := make(bson.A, len(preds))
	for i, p := range preds {
		from[i] = string(p)
	}
	set := bson.M{"status": string(to)}
	if to == domain.InvitationCompleted {
		set["completedAt"] = at.UTC()
	}
	return bson.M{"_id": id, "status": bson.M{"$in": from}}, bson.M{"$set": set}, true
}

// UserRepo stores application accounts.
type UserRepo struct{ col *mongo.Collection }

func (r *UserRepo) Create(ctx domain.Context, u domain.User) error {
	ctx, span := startSpan(ctx, colUsers, "users.Create")
	defer span.End()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, fromUser(u)); err != nil {
		return dbErr("user.create", err)
	}
	return nil
}

func (r *UserRepo) one(ctx domain.Context, name, op string, filter bson.M) (domain.User, error) {
	ctx, span := startSpan(ctx, colUsers, "users."+name)
	defer span.End()
	var d userDoc
	if err := r.col.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.User{}, dbErr(op, err)
	}
	u, err := d.toDomain()
	if err != nil {
		return domain.User{}, dbErr(op, err)
	}
	return u, nil
}

func (r *UserRepo) Get(ctx domain.Context, id string) (domain.User, error) {
	return r.one(ctx, "Get", "user.get", bson.M{"_id": id})
}

func (r *UserRepo) FindByEmail(ctx domain.Context, email string) (domain.User, error) {
	return r.one(ctx, "FindByEmail", "user.find_by_email", bson.M{"emailLower": strings.ToLower(strings.TrimSpace(email))})
}

// ConvertTemporary matches only temporary accounts, so the first writer wins.
func (r *UserRepo) ConvertTemporary(ctx domain.Context, id, name string) error {
	ctx, span := startSpan(ctx, colUsers, "users.ConvertTemporary")
	defer span.End()
	set := bson.M{"temporaryAccount": false}
	if name != "" {
		set["name"] = name
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "temporaryAccount": true}, bson.M{"$set": set})
	if err != nil {
		return dbErr("user.convert", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return dbErr("user.convert", err)
	}
	if n == 0 {
		return dbErr("user.convert", mongo.ErrNoDocuments)
	}
	return dbErr("user.convert", domain.ErrConflict)
}

var byEmail = bson.D{{Key: "emailLower", Value: 1}, {Key: "_id", Value: 1}}

func prefixFilter(prefix string) bson.M {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return bson.M{}
	}
	return bson.M{"emailLower": bson.M{"$regex": "^" + regexp.QuoteMeta(p)}}
}

// afterFilter narrows base to users strictly after the (emailLower, _id) cursor.
func afterFilter(base bson.M, emailLower, id string) bson.M {
	return bson.M{"$and": bson.A{base, bson.M{"$or": bson.A{
		bson.M{"emailLower": bson.M{"$gt": emailLower}},
		bson.M{"emailLower": emailLower, "_id": bson.M{"$gt": id}},
	}}}}
}

func (r *UserRepo) List(ctx domain.Context, q domain.UserQuery) (domain.UserPage, error) {
	ctx, span := startSpan(ctx, colUsers, "users.List")
	defer span.End()
	base := prefixFilter(q.EmailPrefix)
	total, err := r.col.CountDocuments(ctx, base)
	if err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	filter := base
	opts := options.Find().SetSort(byEmail).SetLimit(int64(q.Limit))
	if q.StartAfterID != "" {
		var cursor userDoc
		err := r.col.FindOne(ctx, bson.M{"_id": q.StartAfterID}).Decode(&cursor)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserPage{Users: []domain.User{}, Total: int(total)}, nil
		}
		if err != nil {
			return domain.UserPage{}, dbErr("user.list", err)
		}
		filter = afterFilter(base, cursor.EmailLower, cursor.ID)
	} else if q.Page > 1 {
		opts.SetSkip(int64((q.Page - 1) * q.Limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	users, err := decodeAll[userDoc, domain.User](ctx, cur)
	if err != nil {
		return domain.UserPage{}, dbErr("user.list", err)
	}
	return domain.UserPage{Users: users, Total: int(total)}, nil
}

func (r *UserRepo) SearchByEmailPrefix(ctx domain.Context, prefix string, limit int) ([]domain.User, error) {
	ctx, span := startSpan(ctx, colUsers, "users.SearchByEmailPrefix")
	defer span.End()
	cur, err := r.col.Find(ctx, prefixFilter(prefix), options.Find().SetSort(byEmail).SetLimit(int64(limit)))
	if err != nil {
		return nil, dbErr("user.search", err)
	}
	out, err := decodeAll[userDoc, domain.User](ctx, cur)
	if err != nil {
		return nil, dbErr("user.search", err)
	}
	return out, nil
}

// TranscriptRepo is the append-only message collection.
type TranscriptRepo struct{ col *mongo.Collection }

func (r *TranscriptRepo) Append(ctx domain.Context, m domain.ChatMessage) error {
	ctx, span := startSpan(ctx, colMessages, "chat_messages.Append")
	defer span.End()
	if _, err := r.col.InsertOne(ctx, fromMessage(m)); err != nil {
		return dbErr("transcript.append", err)
	}
	return nil
}

func (r *TranscriptRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.ChatMessage, error) {
	ctx, span := startSpan(ctx, colMessages, "chat_messages.ListByInterview")
	defer span.End()
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"interviewId": interviewID}, opts)
	if err != nil {
		return nil, dbErr("transcript.list", err)
	}
	out, err := decodeAll[messageDoc, domain.ChatMessage](ctx, cur)
	if err != nil {
		return nil, dbErr("transcript.list", err)
	}
	return out, nil
}

// FeedbackRepo stores feedback keyed by id with a unique (interviewId, userId) index.
type FeedbackRepo struct{ col *mongo.Collection }

func (r *FeedbackRepo) Upsert(ctx domain.Context, f domain.Feedback) error {
	ctx, span := startSpan(ctx, colFeedback, "feedback.Upsert")
	defer span.End()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": f.ID}, fromFeedback(f), options.Replace().SetUpsert(true))
	if err != nil {
		return dbErr("feedback.upsert", err)
	}
	return nil
}

func (r *FeedbackRepo) one(ctx context.Context, name, op string, filter bson.M) (domain.Feedback, error) {
	ctx, span := startSpan(ctx, colFeedback, "feedback."+name)
	defer span.End()
	var d feedbackDoc
	if err := r.col.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.Feedback{}, dbErr(op, err)
	}
	f, err := d.toDomain()
	if err != nil {
		return domain.Feedback{}, dbErr(op, err)
	}
	return f, nil
}

func (r *FeedbackRepo) Get(ctx domain.Context, id string) (domain.Feedback, error) {
	return r.one(ctx, "Get", "feedback.get", bson.M{"_id": id})
}

func (r *FeedbackRepo) FindByInterviewAndUser(ctx domain.Context, interviewID, userID string) (domain.Feedback, error) {
	return r.one(ctx, "FindByInterviewAndUser", "feedback.find", bson.M{"interviewId": interviewID, "userId": userID})
}

func (r *FeedbackRepo) ListByInterview(ctx domain.Context, interviewID string) ([]domain.Feedback, error) {
	ctx, span := startSpan(ctx, colFeedback, "feedback.ListByInterview")
	defer span.End()
	cur, err := r.col.Find(ctx, bson.M{"interviewId": interviewID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, dbErr("feedback.list", err)
	}
	out, err := decodeAll[feedbackDoc, domain.Feedback](ctx, cur)
	if err != nil {
		return nil, dbErr("feedback.list", err)
	}
	return out, nil
}

// FeedbackJobRepo stores asynchronous generation jobs.
type FeedbackJobRepo struct{ col *mongo.Collection }

func (r *FeedbackJobRepo) Create(ctx domain.Context, j domain.FeedbackJob) (string, error) {
	ctx, span := startSpan(ctx, colJobs, "jobs.Create")
	defer span.End()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	if _, err := r.col.InsertOne(ctx, fromJob(j)); err != nil {
		return "", dbErr("job.create", err)
	}
	return j.ID, nil
}

func (r *FeedbackJobRepo) Get(ctx domain.Context, id string) (domain.FeedbackJob, error) {
	ctx, span := startSpan(ctx, colJobs, "jobs.Get")
	defer span.End()
	var d jobDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return domain.FeedbackJob{}, dbErr("job.get", err)
	}
	j, err := d.toDomain()
	if err != nil {
		return domain.FeedbackJob{}, dbErr("job.get", err)
	}
	return j, nil
}

func (r *FeedbackJobRepo) set(ctx domain.Context, name, op, id string, set bson.M) error {
	ctx, span := startSpan(ctx, colJobs, "jobs."+name)
	defer span.End()
	set["updatedAt"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return dbErr(op, err)
	}
	if res.MatchedCount == 0 {
		return dbErr(op, mongo.ErrNoDocuments)
	}
	return nil
}

func (r *FeedbackJobRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errMsg *string) error {
	msg := ""
	if errMsg != nil {
		msg = *errMsg
	}
	return r.set(ctx, "UpdateStatus", "job.update_status", id, bson.M{"status": string(status), "error": msg})
}

func (r *FeedbackJobRepo) SetFeedbackID(ctx domain.Context, id, feedbackID string) error {
	return r.set(ctx, "SetFeedbackID", "job.set_feedback", id, bson.M{"feedbackId": feedbackID})
}

func (r *FeedbackJobRepo) FailStale(ctx domain.Context, olderThan time.Time, reason string) (int64, error) {
	ctx, span := startSpan(ctx, colJobs, "jobs.FailStale")
	defer span.End()
	filter := bson.M{"status": bson.M{"$in": bson.A{string(domain.JobQueued), string(domain.JobProcessing)}}, "updatedAt": bson.M{"$lt": olderThan.UTC()}}
	update := bson.M{"$set": bson.M{"status": string(domain.JobFailed), "error": reason, "updatedAt": time.Now().UTC()}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, dbErr("job.fail_stale", err)
	}
	return res.ModifiedCount, nil
}

func (r *FeedbackJobRepo) PurgeFinished(ctx domain.Context, before time.Time) (int64, error) {
	ctx, span := startSpan(ctx, colJobs, "jobs.PurgeFinished")
	defer span.End()
	filter := bson.M{"status": bson.M{"$in": bson.A{string(domain.JobCompleted), string(domain.JobFailed)}}, "updatedAt": bson.M{"$lt": before.UTC()}}
	res, err := r.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, dbErr("job.purge", err)
	}
	return res.DeletedCount, nil
}

// IdentityRepo stores credentials keyed by lowercased email.
type IdentityRepo struct{ col *mongo.Collection }

func (r *IdentityRepo) CreateIdentity(ctx domain.Context, id domain.Identity) error {
	ctx, span := startSpan(ctx, colIdentities, "identities.Create")
	defer span.End()
	created := id.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	doc := identityDoc{Email: strings.ToLower(id.Email), Subject: id.Subject, PasswordHash: id.PasswordHash, Disabled: id.Disabled, CreatedAt: created}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return dbErr("identity.create", err)
	}
	return nil
}

func (r *IdentityRepo) GetIdentityByEmail(ctx domain.Context, email string) (domain.Identity, error) {
	ctx, span := startSpan(ctx, colIdentities, "identities.GetByEmail")
	defer span.End()
	var d identityDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": strings.ToLower(email)}).Decode(&d); err != nil {
		return domain.Identity{}, dbErr("identity.get", err)
	}
	id, err := d.toDomain()
	if err != nil {
		return domain.Identity{}, dbErr("identity.get", err)
	}
	return id, nil
}

func (r *IdentityRepo) RebindIdentity(ctx domain.Context, email, subject string) (string, error) {
	ctx, span := startSpan(ctx, colIdentities, "identities.Rebind")
	defer span.End()
	var prev identityDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": strings.ToLower(email)},
		bson.M{"$set": bson.M{"subject": subject, "disabled": false}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&prev)
	if err != nil {
		return "", dbErr("identity.rebind", err)
	}
	return prev.Subject, nil
}

func (r *IdentityRepo) DisableIdentity(ctx domain.Context, subject string) error {
	ctx, span := startSpan(ctx, colIdentities, "identities.Disable")
	defer span.End()
	if _, err := r.col.UpdateMany(ctx, bson.M{"subject": subject}, bson.M{"$set": bson.M{"disabled": true}}); err != nil {
		return dbErr("identity.disable", err)
	}
	return nil
}
