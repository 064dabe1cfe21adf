package store

import (
	"context"
	"fmt"

	"eduportal/pkg/domain"
)

// GetBooks returns the catalog in insertion order.
func (s *Store) GetBooks(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	err := s.view(ctx, func(doc domain.Document) {
		books = doc.Books
	})
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, wait(ctx, s.latency)
}

// GetBook looks up a single book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (domain.Book, bool, error) {
	var (
		book  domain.Book
		found bool
	)
	err := s.view(ctx, func(doc domain.Document) {
		for _, b := range doc.Books {
			if b.ID == id {
				book, found = b, true
				return
			}
		}
	})
	if err != nil {
		return domain.Book{}, false, err
	}
	return book, found, wait(ctx, s.latency)
}

// AddBook appends a new book stamped with an ID and upload time.
func (s *Store) AddBook(ctx context.Context, in domain.NewBook) (domain.Book, error) {
	if err := validate.Struct(in); err != nil {
		return domain.Book{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	book := domain.Book{
		ID:          newID("b"),
		Title:       in.Title,
		Author:      in.Author,
		Category:    in.Category,
		Description: in.Description,
		PDFURL:      in.PDFURL,
		UploadedAt:  s.timestamp(),
	}
	err := s.update(ctx, func(doc *domain.Document) error {
		doc.Books = append(doc.Books, book)
		return nil
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, wait(ctx, s.latency)
}
