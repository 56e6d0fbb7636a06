package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "marketplace/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

type listingDocument struct {
	ID          string    `bson:"_id"`
	ProviderID  string    `bson:"provider_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	City        string    `bson:"city,omitempty"`
	PriceCents  int64     `bson:"price_cents"`
	IsActive    bool      `bson:"is_active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Provider:    domainlistings.ProviderID(d.ProviderID),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		City:        d.City,
		PriceCents:  d.PriceCents,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	if l == nil || l.ID == "" {
		return domainlistings.ErrIDRequired
	}
	doc := listingDocument{
		ID:          string(l.ID),
		ProviderID:  string(l.Provider),
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		City:        l.City,
		PriceCents:  l.PriceCents,
		IsActive:    l.IsActive,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	opts := params.Normalized()
	filter := bson.M{}
	if opts.OnlyActive {
		filter["is_active"] = true
	}
	if opts.Provider != "" {
		filter["provider_id"] = string(opts.Provider)
	}
	if opts.Category != "" {
		filter["category"] = opts.Category
	}
	if opts.City != "" {
		filter["city"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(opts.City) + "$", Options: "i"}
	}
	if opts.Query != "" {
		q := primitive.Regex{Pattern: regexp.QuoteMeta(opts.Query), Options: "i"}
		filter["$or"] = bson.A{bson.M{"title": q}, bson.M{"description": q}}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))
	cur, err := r.col.Find(ctx, filter, findOpts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return domainlistings.SearchResult{}, err
	}
	items := make([]*domainlistings.Listing, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toAggregate())
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
