package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hitoshi/pumpbook/internal/model"
)

type fuelSaleDocument struct {
	ID             string    `bson:"id"`
	UserID         string    `bson:"user_id"`
	Date           string    `bson:"date"`
	FuelType       string    `bson:"fuel_type"`
	NozzleID       string    `bson:"nozzle_id"`
	OpeningReading float64   `bson:"opening_reading"`
	ClosingReading float64   `bson:"closing_reading"`
	Liters         float64   `bson:"liters"`
	Rate           float64   `bson:"rate"`
	Amount         float64   `bson:"amount"`
	CreatedAt      time.Time `bson:"created_at"`
}

type creditSaleDocument struct {
	ID           string    `bson:"id"`
	UserID       string    `bson:"user_id"`
	Date         string    `bson:"date"`
	CustomerName string    `bson:"customer_name"`
	Amount       float64   `bson:"amount"`
	Description  *string   `bson:"description"`
	CreatedAt    time.Time `bson:"created_at"`
}

type incomeExpenseDocument struct {
	ID          string    `bson:"id"`
	UserID      string    `bson:"user_id"`
	Date        string    `bson:"date"`
	Type        string    `bson:"type"`
	Category    string    `bson:"category"`
	Amount      float64   `bson:"amount"`
	Description *string   `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

type fuelRateDocument struct {
	ID        string    `bson:"id"`
	UserID    string    `bson:"user_id"`
	Date      string    `bson:"date"`
	FuelType  string    `bson:"fuel_type"`
	Rate      float64   `bson:"rate"`
	CreatedAt time.Time `bson:"created_at"`
}

type statusCheckDocument struct {
	ID         string    `bson:"id"`
	ClientName string    `bson:"client_name"`
	Timestamp  time.Time `bson:"timestamp"`
}

// recordQuery はRecordFilterをMongoDBのフィルタに変換する。
// user_idは常に条件に含める。
func recordQuery(filter model.RecordFilter) bson.M {
	q := bson.M{"user_id": filter.UserID}
	if filter.Date != "" {
		q["date"] = filter.Date
	}
	return q
}

// findAll はフィルタに一致するドキュメントを作成順にデコードする。
func findAll[D any](ctx context.Context, coll *mongo.Collection, query bson.M, sortKey string, limit int) ([]D, error) {
	cursor, err := coll.Find(ctx, query,
		options.Find().
			SetSort(bson.D{{Key: sortKey, Value: 1}}).
			SetLimit(int64(normalizeLimit(limit))),
	)
	if err != nil {
		return nil, err
	}

	docs := []D{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// MongoFuelSaleRepo はMongoDBを使用した燃料販売記録リポジトリ。
type MongoFuelSaleRepo struct {
	coll *mongo.Collection
}

// NewMongoFuelSaleRepo はMongoFuelSaleRepoを生成する。
func NewMongoFuelSaleRepo(db *mongo.Database) *MongoFuelSaleRepo {
	return &MongoFuelSaleRepo{coll: db.Collection(collectionFuelSales)}
}

// Create は燃料販売記録を作成する。
func (r *MongoFuelSaleRepo) Create(ctx context.Context, s *model.FuelSale) error {
	_, err := r.coll.InsertOne(ctx, fuelSaleDocument{
		ID: s.ID, UserID: s.UserID, Date: s.Date, FuelType: s.FuelType, NozzleID: s.NozzleID,
		OpeningReading: s.OpeningReading, ClosingReading: s.ClosingReading,
		Liters: s.Liters, Rate: s.Rate, Amount: s.Amount, CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create fuel sale: %w", err)
	}
	return nil
}

// List はユーザーの燃料販売記録を作成順に返す。
func (r *MongoFuelSaleRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelSale, error) {
	docs, err := findAll[fuelSaleDocument](ctx, r.coll, recordQuery(filter), "created_at", filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel sales: %w", err)
	}

	sales := make([]*model.FuelSale, len(docs))
	for i, d := range docs {
		sales[i] = &model.FuelSale{
			ID: d.ID, UserID: d.UserID, Date: d.Date, FuelType: d.FuelType, NozzleID: d.NozzleID,
			OpeningReading: d.OpeningReading, ClosingReading: d.ClosingReading,
			Liters: d.Liters, Rate: d.Rate, Amount: d.Amount, CreatedAt: d.CreatedAt,
		}
	}
	return sales, nil
}

// MongoCreditSaleRepo はMongoDBを使用した掛け売り記録リポジトリ。
type MongoCreditSaleRepo struct {
	coll *mongo.Collection
}

// NewMongoCreditSaleRepo はMongoCreditSaleRepoを生成する。
func NewMongoCreditSaleRepo(db *mongo.Database) *MongoCreditSaleRepo {
	return &MongoCreditSaleRepo{coll: db.Collection(collectionCreditSales)}
}

// Create は掛け売り記録を作成する。
func (r *MongoCreditSaleRepo) Create(ctx context.Context, s *model.CreditSale) error {
	_, err := r.coll.InsertOne(ctx, creditSaleDocument{
		ID: s.ID, UserID: s.UserID, Date: s.Date, CustomerName: s.CustomerName,
		Amount: s.Amount, Description: s.Description, CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create credit sale: %w", err)
	}
	return nil
}

// List はユーザーの掛け売り記録を作成順に返す。
func (r *MongoCreditSaleRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.CreditSale, error) {
	docs, err := findAll[creditSaleDocument](ctx, r.coll, recordQuery(filter), "created_at", filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit sales: %w", err)
	}

	sales := make([]*model.CreditSale, len(docs))
	for i, d := range docs {
		sales[i] = &model.CreditSale{
			ID: d.ID, UserID: d.UserID, Date: d.Date, CustomerName: d.CustomerName,
			Amount: d.Amount, Description: d.Description, CreatedAt: d.CreatedAt,
		}
	}
	return sales, nil
}

// MongoIncomeExpenseRepo はMongoDBを使用した収入・支出記録リポジトリ。
type MongoIncomeExpenseRepo struct {
	coll *mongo.Collection
}

// NewMongoIncomeExpenseRepo はMongoIncomeExpenseRepoを生成する。
func NewMongoIncomeExpenseRepo(db *mongo.Database) *MongoIncomeExpenseRepo {
	return &MongoIncomeExpenseRepo{coll: db.Collection(collectionIncomeExpenses)}
}

// Create は収入・支出記録を作成する。
func (r *MongoIncomeExpenseRepo) Create(ctx context.Context, e *model.IncomeExpense) error {
	_, err := r.coll.InsertOne(ctx, incomeExpenseDocument{
		ID: e.ID, UserID: e.UserID, Date: e.Date, Type: string(e.Type), Category: e.Category,
		Amount: e.Amount, Description: e.Description, CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create income/expense record: %w", err)
	}
	return nil
}

// List はユーザーの収入・支出記録を作成順に返す。
func (r *MongoIncomeExpenseRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.IncomeExpense, error) {
	docs, err := findAll[incomeExpenseDocument](ctx, r.coll, recordQuery(filter), "created_at", filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list income/expense records: %w", err)
	}

	records := make([]*model.IncomeExpense, len(docs))
	for i, d := range docs {
		records[i] = &model.IncomeExpense{
			ID: d.ID, UserID: d.UserID, Date: d.Date, Type: model.EntryType(d.Type), Category: d.Category,
			Amount: d.Amount, Description: d.Description, CreatedAt: d.CreatedAt,
		}
	}
	return records, nil
}

// MongoFuelRateRepo はMongoDBを使用した燃料単価リポジトリ。
type MongoFuelRateRepo struct {
	coll *mongo.Collection
}

// NewMongoFuelRateRepo はMongoFuelRateRepoを生成する。
func NewMongoFuelRateRepo(db *mongo.Database) *MongoFuelRateRepo {
	return &MongoFuelRateRepo{coll: db.Collection(collectionFuelRates)}
}

// Create は燃料単価記録を作成する。
func (r *MongoFuelRateRepo) Create(ctx context.Context, fr *model.FuelRate) error {
	_, err := r.coll.InsertOne(ctx, fuelRateDocument{
		ID: fr.ID, UserID: fr.UserID, Date: fr.Date, FuelType: fr.FuelType, Rate: fr.Rate, CreatedAt: fr.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create fuel rate: %w", err)
	}
	return nil
}

// List はユーザーの燃料単価記録を作成順に返す。
func (r *MongoFuelRateRepo) List(ctx context.Context, filter model.RecordFilter) ([]*model.FuelRate, error) {
	docs, err := findAll[fuelRateDocument](ctx, r.coll, recordQuery(filter), "created_at", filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel rates: %w", err)
	}

	rates := make([]*model.FuelRate, len(docs))
	for i, d := range docs {
		rates[i] = &model.FuelRate{
			ID: d.ID, UserID: d.UserID, Date: d.Date, FuelType: d.FuelType, Rate: d.Rate, CreatedAt: d.CreatedAt,
		}
	}
	return rates, nil
}

// MongoStatusCheckRepo はMongoDBを使用した疎通確認記録リポジトリ。
type MongoStatusCheckRepo struct {
	coll *mongo.Collection
}

// NewMongoStatusCheckRepo はMongoStatusCheckRepoを生成する。
func NewMongoStatusCheckRepo(db *mongo.Database) *MongoStatusCheckRepo {
	return &MongoStatusCheckRepo{coll: db.Collection(collectionStatusChecks)}
}

// Create は疎通確認記録を作成する。
func (r *MongoStatusCheckRepo) Create(ctx context.Context, c *model.StatusCheck) error {
	_, err := r.coll.InsertOne(ctx, statusCheckDocument{ID: c.ID, ClientName: c.ClientName, Timestamp: c.Timestamp})
	if err != nil {
		return fmt.Errorf("failed to create status check: %w", err)
	}
	return nil
}

// List は疎通確認記録を古い順に返す。
func (r *MongoStatusCheckRepo) List(ctx context.Context, limit int) ([]*model.StatusCheck, error) {
	docs, err := findAll[statusCheckDocument](ctx, r.coll, bson.M{}, "timestamp", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list status checks: %w", err)
	}

	checks := make([]*model.StatusCheck, len(docs))
	for i, d := range docs {
		checks[i] = &model.StatusCheck{ID: d.ID, ClientName: d.ClientName, Timestamp: d.Timestamp}
	}
	return checks, nil
}

// mongoHealth は*mongo.ClientをHealthCheckerに適合させる。
type mongoHealth struct {
	client *mongo.Client
}

// PingContext はプライマリへの疎通を確認する。
func (h mongoHealth) PingContext(ctx context.Context) error {
	return h.client.Ping(ctx, readpref.Primary())
}

// EnsureMongoIndexes はセッション検索と記録一覧で使用するインデックスを作成する。
// 既に存在するインデックスは再作成されない。
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	sessionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_token", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}
	if _, err := db.Collection(collectionSessions).Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	for _, name := range []string{collectionFuelSales, collectionCreditSales, collectionIncomeExpenses, collectionFuelRates} {
		idx := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}}
		if _, err := db.Collection(name).Indexes().CreateOne(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}
	return nil
}

// NewMongoStore はMongoDBデータベースからリポジトリ一式を構築する。
// Closeはクライアントを切断する。
func NewMongoStore(db *mongo.Database) *Store {
	client := db.Client()
	return &Store{
		Users:          NewMongoUserRepo(db),
		Sessions:       NewMongoSessionRepo(db),
		FuelSales:      NewMongoFuelSaleRepo(db),
		CreditSales:    NewMongoCreditSaleRepo(db),
		IncomeExpenses: NewMongoIncomeExpenseRepo(db),
		FuelRates:      NewMongoFuelRateRepo(db),
		StatusChecks:   NewMongoStatusCheckRepo(db),
		Health:         mongoHealth{client: client},
		Close: func() error {
			return client.Disconnect(context.Background())
		},
	}
}

// compile-time interface check
var (
	_ FuelSaleRepository      = (*MongoFuelSaleRepo)(nil)
	_ CreditSaleRepository    = (*MongoCreditSaleRepo)(nil)
	_ IncomeExpenseRepository = (*MongoIncomeExpenseRepo)(nil)
	_ FuelRateRepository      = (*MongoFuelRateRepo)(nil)
	_ StatusCheckRepository   = (*MongoStatusCheckRepo)(nil)
)
