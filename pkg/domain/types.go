package domain

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// GeneralFeedback is the review book reference for feedback not tied to a book.
const GeneralFeedback = "general"

// PlaceholderPDF marks a book that carries no embedded payload.
const PlaceholderPDF = "#"

type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      Role       `json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	PDFURL      string    `json:"pdfUrl"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Review struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

type LoginLog struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the persisted aggregate; it is read and written as one unit.
type Document struct {
	Users     []User     `json:"users"`
	Books     []Book     `json:"books"`
	Reviews   []Review   `json:"reviews"`
	LoginLogs []LoginLog `json:"loginLogs"`
}

// NewBook carries the admin-supplied fields of a book upload.
type NewBook struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Description string `json:"description" validate:"required"`
	PDFURL      string `json:"pdfUrl" validate:"required"`
}

// NewReview carries a user submission. BookID may be GeneralFeedback.
type NewReview struct {
	BookID   string `json:"bookId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	Username string `json:"username" validate:"required"`
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Comment  string `json:"comment" validate:"required"`
}
