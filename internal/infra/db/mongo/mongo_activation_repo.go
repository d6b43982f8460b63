// Package mongo stores activation records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"activation-service/internal/domain"
	"activation-service/internal/domain/model"
	"activation-service/internal/domain/ports/repository"
)

var _ repository.ActivationRepository = (*ActivationRepo)(nil)

const defaultCollection = "activations"

var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// activationDoc is the stored shape. deviceId is null while unbound and
// activeTill keeps the YYYY-MM-DD wire form.
type activationDoc struct {
	Code       string    `bson:"code"`
	DeviceID   *string   `bson:"deviceId"`
	IsActive   bool      `bson:"isActive"`
	ActiveTill string    `bson:"activeTill"`
	Name       string    `bson:"name"`
	Email      string    `bson:"email"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func toDoc(rec *model.ActivationRecord, now time.Time) activationDoc {
	d := activationDoc{
		Code:       rec.Code,
		IsActive:   rec.IsActive,
		ActiveTill: rec.ActiveTill.String(),
		Name:       rec.Name,
		Email:      rec.Email,
		UpdatedAt:  now,
	}
	if rec.DeviceID != "" {
		id := rec.DeviceID
		d.DeviceID = &id
	}
	return d
}

func (d activationDoc) record() (*model.ActivationRecord, error) {
	till, err := model.ParseDate(d.ActiveTill)
	if err != nil {
		return nil, fmt.Errorf("%w: activeTill %q", domain.ErrReadDatabaseRow, d.ActiveTill)
	}
	rec := &model.ActivationRecord{
		Code:       d.Code,
		IsActive:   d.IsActive,
		ActiveTill: till,
		Name:       d.Name,
		Email:      d.Email,
	}
	if d.DeviceID != nil {
		rec.DeviceID = *d.DeviceID
	}
	return rec, nil
}

// ActivationRepo implements repository.ActivationRepository on one collection.
// The tx argument is ignored; single-document conditional updates carry the
// consistency the use case needs.
type ActivationRepo struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewActivationRepo binds to collection (default "activations") and creates
// the unique code index.
func NewActivationRepo(ctx context.Context, db *mongo.Database, collection string) (*ActivationRepo, error) {
	if collection == "" {
		collection = defaultCollection
	}
	if !validCollectionName.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	r := &ActivationRepo{collection: db.Collection(collection), now: time.Now}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return r, nil
}

func (r *ActivationRepo) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "deviceId", Value: 1}},
		},
	})
	return err
}

func (r *ActivationRepo) Create(ctx context.Context, _ repository.Tx, rec *model.ActivationRecord) error {
	if _, err := r.collection.InsertOne(ctx, toDoc(rec, r.now())); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (r *ActivationRepo) FindByCode(ctx context.Context, _ repository.Tx, code string) (*model.ActivationRecord, error) {
	var doc activationDoc
	if err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find activation: %w", err)
	}
	return doc.record()
}

func (r *ActivationRepo) Update(ctx context.Context, tx repository.Tx, code string, patch model.ActivationPatch) (*model.ActivationRecord, error) {
	if patch.IsEmpty() {
		return r.FindByCode(ctx, tx, code)
	}
	set := bson.M{"updatedAt": r.now()}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.ActiveTill != nil {
		set["activeTill"] = patch.ActiveTill.String()
	}
	if patch.UnbindDevice {
		set["deviceId"] = nil
	}
	return r.findOneAndSet(ctx, bson.M{"code": code}, set)
}

// BindDevice only matches while deviceId is null, so two racing binds cannot both win.
func (r *ActivationRepo) BindDevice(ctx context.Context, tx repository.Tx, code, deviceID string) (*model.ActivationRecord, error) {
	rec, err := r.findOneAndSet(ctx,
		bson.M{"code": code, "deviceId": nil},
		bson.M{"deviceId": deviceID, "updatedAt": r.now()},
	)
	if !errors.Is(err, domain.ErrNotFound) {
		return rec, err
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"code": code})
	if err != nil {
		return nil, fmt.Errorf("check activation: %w", err)
	}
	if n > 0 {
		return nil, domain.ErrDeviceAlreadyBound
	}
	return nil, domain.ErrNotFound
}

func (r *ActivationRepo) findOneAndSet(ctx context.Context, filter, set bson.M) (*model.ActivationRecord, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc activationDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update activation: %w", err)
	}
	return doc.record()
}
