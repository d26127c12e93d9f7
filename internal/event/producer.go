package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chautari/chautari/internal/domain"
	pkgkafka "github.com/chautari/chautari/pkg/kafka"
)

// Kafka topic constants for marketplace domain events.
const (
	TopicUserRegistered               = "chautari.user.registered"
	TopicUserVerificationRequested    = "chautari.user.verification_requested"
	TopicUserEmailVerified            = "chautari.user.email_verified"
	TopicUserPasswordResetRequested   = "chautari.user.password_reset_requested"
	TopicListingCreated               = "chautari.listing.created"
	TopicListingSold                  = "chautari.listing.sold"
)

// Aggregate type constants.
const (
	AggregateTypeUser    = "user"
	AggregateTypeListing = "listing"
)

// Source identifier for events originating from the API server.
const SourceAPI = "chautari-api"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VerificationRequestedData is the payload for a user.verification_requested
// event. The worker mails the code to the user.
type VerificationRequestedData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Code      string `json:"code"`
}

// EmailVerifiedData is the payload for a user.email_verified event.
type EmailVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// PasswordResetRequestedData is the payload for a
// user.password_reset_requested event. The worker mails the reset token.
type PasswordResetRequestedData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Token     string `json:"token"`
}

// ListingCreatedData is the payload for a listing.created event.
type ListingCreatedData struct {
	ListingID  string  `json:"listing_id"`
	SellerID   string  `json:"seller_id"`
	CategoryID string  `json:"category_id"`
	Title      string  `json:"title"`
	Slug       string  `json:"slug"`
	Price      float64 `json:"price"`
}

// ListingSoldData is the payload for a listing.sold event.
type ListingSoldData struct {
	ListingID string `json:"listing_id"`
	SellerID  string `json:"seller_id"`
	Title     string `json:"title"`
}

// Producer publishes marketplace domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the API server.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishVerificationRequested publishes a user.verification_requested event
// carrying the emailed code.
func (p *Producer) PublishVerificationRequested(ctx context.Context, user *domain.User, code string) error {
	data := VerificationRequestedData{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Code:      code,
	}

	event, err := pkgkafka.NewEvent(TopicUserVerificationRequested, user.ID, AggregateTypeUser, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create user.verification_requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserVerificationRequested, event); err != nil {
		return fmt.Errorf("publish user.verification_requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.verification_requested event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishEmailVerified publishes a user.email_verified event.
func (p *Producer) PublishEmailVerified(ctx context.Context, user *domain.User) error {
	data := EmailVerifiedData{
		UserID: user.ID,
		Email:  user.Email,
	}

	event, err := pkgkafka.NewEvent(TopicUserEmailVerified, user.ID, AggregateTypeUser, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create user.email_verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserEmailVerified, event); err != nil {
		return fmt.Errorf("publish user.email_verified event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.email_verified event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishPasswordResetRequested publishes a user.password_reset_requested
// event carrying the emailed reset token.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, user *domain.User, token string) error {
	data := PasswordResetRequestedData{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Token:     token,
	}

	event, err := pkgkafka.NewEvent(TopicUserPasswordResetRequested, user.ID, AggregateTypeUser, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create user.password_reset_requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserPasswordResetRequested, event); err != nil {
		return fmt.Errorf("publish user.password_reset_requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.password_reset_requested event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishListingCreated publishes a listing.created event.
func (p *Producer) PublishListingCreated(ctx context.Context, listing *domain.Listing) error {
	data := ListingCreatedData{
		ListingID:  listing.ID,
		SellerID:   listing.SellerID,
		CategoryID: listing.CategoryID,
		Title:      listing.Title,
		Slug:       listing.Slug,
		Price:      listing.Price,
	}

	event, err := pkgkafka.NewEvent(TopicListingCreated, listing.ID, AggregateTypeListing, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create listing.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicListingCreated, event); err != nil {
		return fmt.Errorf("publish listing.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published listing.created event",
		slog.String("listing_id", listing.ID),
	)

	return nil
}

// PublishListingSold publishes a listing.sold event.
func (p *Producer) PublishListingSold(ctx context.Context, listing *domain.Listing) error {
	data := ListingSoldData{
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
		Title:     listing.Title,
	}

	event, err := pkgkafka.NewEvent(TopicListingSold, listing.ID, AggregateTypeListing, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create listing.sold event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicListingSold, event); err != nil {
		return fmt.Errorf("publish listing.sold event: %w", err)
	}

	p.logger.DebugContext(ctx, "published listing.sold event",
		slog.String("listing_id", listing.ID),
	)

	return nil
}
