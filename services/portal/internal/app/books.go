package app

import (
	"context"
	"errors"
	"strings"

	"eduportal/pkg/domain"
	"eduportal/pkg/pdfdata"
	"eduportal/pkg/store"
)

// UploadBook is the catalog metadata sent alongside a PDF.
type UploadBook struct {
	Title       string
	Author      string
	Category    string
	Description string
}

// Books lists the catalog, optionally filtered by a case-insensitive
// substring of title, author or category.
func (a *App) Books(ctx context.Context, query string) ([]domain.Book, error) {
	books, err := a.store.GetBooks(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return books, nil
	}
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Category), q) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (a *App) Book(ctx context.Context, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// AddBook validates the PDF, embeds it as a data URI and stores the book.
func (a *App) AddBook(ctx context.Context, meta UploadBook, pdf []byte) (domain.Book, error) {
	if len(pdf) == 0 {
		return domain.Book{}, ErrFileRequired
	}
	if a.maxUpload > 0 && int64(len(pdf)) > a.maxUpload {
		return domain.Book{}, pdfdata.ErrTooLarge
	}
	pages, err := pdfdata.Validate(pdf)
	if err != nil {
		return domain.Book{}, err
	}
	book, err := a.store.AddBook(ctx, domain.NewBook{
		Title:       strings.TrimSpace(meta.Title),
		Author:      strings.TrimSpace(meta.Author),
		Category:    strings.TrimSpace(meta.Category),
		Description: strings.TrimSpace(meta.Description),
		PDFURL:      pdfdata.Encode(pdf),
	})
	if err != nil {
		return domain.Book{}, err
	}
	a.logger.Info("book uploaded", "book_id", book.ID, "bytes", len(pdf), "pages", pages)
	return book, nil
}

// Download returns the attachment name and decoded PDF of a book.
func (a *App) Download(ctx context.Context, id string) (string, []byte, error) {
	book, err := a.Book(ctx, id)
	if err != nil {
		return "", nil, err
	}
	data, err := pdfdata.Decode(book.PDFURL)
	if err != nil {
		return "", nil, err
	}
	return pdfdata.DownloadName(book.Title), data, nil
}

// Insight asks the configured model about a book. The text is never an
// error; only an unknown book fails.
func (a *App) Insight(ctx context.Context, id, query string, asHTML bool) (string, error) {
	book, err := a.Book(ctx, id)
	if err != nil {
		return "", err
	}
	text := a.insight.BookInsight(ctx, book.Title, book.Author, query)
	if !asHTML {
		return text, nil
	}
	html, err := a.insight.RenderHTML(text)
	if err != nil {
		a.logger.Warn("insight html render failed", "book_id", id, "err", err)
		return text, nil
	}
	return html, nil
}

// IsClientError reports whether err describes a bad upload rather than a
// server fault.
func IsClientError(err error) bool {
	return errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, pdfdata.ErrNotPDF) ||
		errors.Is(err, pdfdata.ErrTooLarge) ||
		errors.Is(err, ErrFileRequired) ||
		errors.Is(err, ErrUnknownBook)
}
