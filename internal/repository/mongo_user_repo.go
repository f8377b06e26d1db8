package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/pumpbook/internal/model"
)

// MongoDBのコレクション名
const (
	collectionUsers          = "users"
	collectionSessions       = "user_sessions"
	collectionFuelSales      = "fuel_sales"
	collectionCreditSales    = "credit_sales"
	collectionIncomeExpenses = "income_expenses"
	collectionFuelRates      = "fuel_rates"
	collectionStatusChecks   = "status_checks"
)

// userDocument はusersコレクションのドキュメント。IdPのユーザーIDを_idに格納する。
type userDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Picture   *string   `bson:"picture,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoUserRepo はMongoDBを使用したユーザーリポジトリ。
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo はMongoUserRepoを生成する。
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection(collectionUsers)}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return &model.User{
		ID:        doc.ID,
		Email:     doc.Email,
		Name:      doc.Name,
		Picture:   doc.Picture,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// CreateIfAbsent は$setOnInsertによるupsertで、存在しない場合のみユーザーを作成する。
// 既存ドキュメントは一切更新されない。
func (r *MongoUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	// _idはフィルタ側から採用されるため、挿入フィールドには含めない
	fields := bson.M{
		"email":      user.Email,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	}
	if user.Picture != nil {
		fields["picture"] = *user.Picture
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$setOnInsert": fields},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

// compile-time interface check
var _ UserRepository = (*MongoUserRepo)(nil)
