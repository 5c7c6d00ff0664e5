package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents provides helper methods for tracing domain-specific
// operations beyond generic HTTP/DB spans (e.g. "user followed another
// user", "post was liked")
type BusinessEvents struct {
	tracer trace.Tracer
}

// NewBusinessEvents creates a new business events tracer
func NewBusinessEvents() *BusinessEvents {
	return &BusinessEvents{
		tracer: otel.Tracer("business-events"),
	}
}

// FeedEventAttrs attributes for feed-related operations
type FeedEventAttrs struct {
	Page      int64
	Limit     int64
	ItemCount int64
}

// TraceGetFeed creates a span for feed retrieval operations
func (be *BusinessEvents) TraceGetFeed(ctx context.Context, attrs FeedEventAttrs) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "feed.get",
		trace.WithAttributes(
			attribute.Int64("feed.page", attrs.Page),
			attribute.Int64("feed.limit", attrs.Limit),
		),
	)

	if attrs.ItemCount > 0 {
		span.SetAttributes(attribute.Int64("feed.item_count", attrs.ItemCount))
	}

	return ctx, span
}

// TraceCreatePost creates a span for post creation
func (be *BusinessEvents) TraceCreatePost(ctx context.Context, postID string, kind string) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "feed.create_post",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("post.kind", kind),
		),
	)
	return ctx, span
}

// SocialInteractionAttrs attributes for social operations
type SocialInteractionAttrs struct {
	ActionType       string // "follow", "like", "comment", "share"
	TargetType       string // "post", "user", "comment"
	TargetID         string
	NotificationSent bool
	IsFollowing      bool // For follow operations
}

// TraceFollowUser creates a span for follow operations
func (be *BusinessEvents) TraceFollowUser(ctx context.Context, userID string, targetUserID string) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "social.follow_user",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("target_user.id", targetUserID),
		),
	)
	return ctx, span
}

// TraceSocialInteraction creates a span for generic social interactions
func (be *BusinessEvents) TraceSocialInteraction(ctx context.Context, actionType string, attrs SocialInteractionAttrs) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "social."+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
			attribute.String("target.type", attrs.TargetType),
			attribute.String("target.id", attrs.TargetID),
		),
	)

	if attrs.NotificationSent {
		span.SetAttributes(attribute.Bool("notification.sent", true))
	}
	if attrs.IsFollowing {
		span.SetAttributes(attribute.Bool("follow.is_following", attrs.IsFollowing))
	}

	return ctx, span
}

// TraceCreateComment creates a span for comment creation
func (be *BusinessEvents) TraceCreateComment(ctx context.Context, postID string, commentID string, isReply bool) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "social.create_comment",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("comment.id", commentID),
			attribute.Bool("comment.is_reply", isReply),
		),
	)
	return ctx, span
}

// SearchEventAttrs attributes for search operations
type SearchEventAttrs struct {
	Query        string
	Index        string
	ResultCount  int64
	FallbackUsed bool
}

// TraceSearch creates a span for search operations
func (be *BusinessEvents) TraceSearch(ctx context.Context, attrs SearchEventAttrs) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "search.query",
		trace.WithAttributes(
			attribute.String("search.query", attrs.Query),
			attribute.String("search.index", attrs.Index),
			attribute.Int64("search.result_count", attrs.ResultCount),
		),
	)

	if attrs.FallbackUsed {
		span.SetAttributes(attribute.Bool("search.fallback_used", true))
	}

	return ctx, span
}

// TraceImageUpload creates a span for image upload operations
func (be *BusinessEvents) TraceImageUpload(ctx context.Context, kind string, sizeBytes int64) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "storage.upload_image",
		trace.WithAttributes(
			attribute.String("upload.kind", kind),
			attribute.Int64("file.size_bytes", sizeBytes),
		),
	)
	return ctx, span
}

// TraceExternalAPI creates a span for external API calls
func (be *BusinessEvents) TraceExternalAPI(ctx context.Context, service string, operation string) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "external."+service+"."+operation,
		trace.WithAttributes(
			attribute.String("external.service", service),
			attribute.String("external.operation", operation),
		),
	)
	return ctx, span
}

// RecordExternalAPIError records an error in an external API span
func RecordExternalAPIError(span trace.Span, err error, retryable bool) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("external.error.retryable", retryable))
	}
}

var globalBusinessEvents *BusinessEvents

// GetBusinessEvents returns the global business events tracer
func GetBusinessEvents() *BusinessEvents {
	if globalBusinessEvents == nil {
		globalBusinessEvents = NewBusinessEvents()
	}
	return globalBusinessEvents
}
