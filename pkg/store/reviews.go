package store

import (
	"context"
	"fmt"

	"eduportal/pkg/domain"
)

// GetReviews returns all reviews, newest first.
func (s *Store) GetReviews(ctx context.Context) ([]domain.Review, error) {
	var reviews []domain.Review
	if err := s.view(ctx, func(doc domain.Document) { reviews = doc.Reviews }); err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	sortReviewsNewestFirst(reviews)
	return reviews, wait(ctx, s.latency)
}

// AddReview stores a review at the head of the collection. The same user
// leaving the same trimmed comment on the same book is rejected.
func (s *Store) AddReview(ctx context.Context, in domain.NewReview) (domain.Review, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Review{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	review := domain.Review{
		ID:        newID("r"),
		BookID:    in.BookID,
		UserID:    in.UserID,
		Username:  in.Username,
		Rating:    in.Rating,
		Comment:   in.Comment,
		Timestamp: s.timestamp(),
	}
	err := s.update(ctx, func(doc *domain.Document) error {
		for _, r := range doc.Reviews {
			if r.UserID == in.UserID && r.BookID == in.BookID && sameComment(r.Comment, in.Comment) {
				return ErrDuplicateReview
			}
		}
		doc.Reviews = append([]domain.Review{review}, doc.Reviews...)
		return nil
	})
	if err != nil {
		return domain.Review{}, err
	}
	return review, wait(ctx, s.latency)
}
