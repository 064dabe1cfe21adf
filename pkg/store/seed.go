package store

import (
	"fmt"
	"math/rand/v2"
	"time"

	"eduportal/pkg/domain"
)

const (
	seedUserCount     = 15
	seedLoginLookback = 10 * 24 * time.Hour
)

// newSeedDocument builds the initial catalog: three books, fifteen students
// with randomized historical logins and one matching log entry each. Reviews
// start empty.
func newSeedDocument(now time.Time, newID func(prefix string) string) domain.Document {
	now = now.UTC()
	books := []domain.Book{
		{
			ID:          "b-1",
			Title:       "Introduction to Algorithms",
			Author:      "Thomas H. Cormen",
			Category:    "Computer Science",
			Description: "Comprehensive guide to algorithms for students and professionals.",
			PDFURL:      domain.PlaceholderPDF,
			UploadedAt:  now,
		},
		{
			ID:          "b-2",
			Title:       "Organic Chemistry",
			Author:      "Paula Yurkanis Bruice",
			Category:    "Science",
			Description: "Essential principles of organic chemistry.",
			PDFURL:      domain.PlaceholderPDF,
			UploadedAt:  now,
		},
		{
			ID:          "b-3",
			Title:       "Macroeconomics",
			Author:      "N. Gregory Mankiw",
			Category:    "Economics",
			Description: "Principles of macroeconomics covering fiscal policy.",
			PDFURL:      domain.PlaceholderPDF,
			UploadedAt:  now,
		},
	}

	users := make([]domain.User, 0, seedUserCount)
	logs := make([]domain.LoginLog, 0, seedUserCount)
	for i := 1; i <= seedUserCount; i++ {
		username := fmt.Sprintf("student%d", i)
		lastLogin := now.Add(-time.Duration(rand.Int64N(int64(seedLoginLookback))))
		users = append(users, domain.User{
			ID:        fmt.Sprintf("u-%d", i),
			Username:  username,
			Role:      domain.RoleUser,
			LastLogin: &lastLogin,
		})
		logs = append(logs, domain.LoginLog{
			ID:        newID("log"),
			Username:  username,
			Role:      domain.RoleUser,
			Timestamp: lastLogin,
		})
	}

	return domain.Document{
		Users:     users,
		Books:     books,
		Reviews:   []domain.Review{},
		LoginLogs: logs,
	}
}

func cloneDocument(doc domain.Document) domain.Document {
	out := domain.Document{
		Users:     make([]domain.User, len(doc.Users)),
		Books:     append([]domain.Book{}, doc.Books...),
		Reviews:   append([]domain.Review{}, doc.Reviews...),
		LoginLogs: append([]domain.LoginLog{}, doc.LoginLogs...),
	}
	for i, u := range doc.Users {
		if u.LastLogin != nil {
			ts := *u.LastLogin
			u.LastLogin = &ts
		}
		out.Users[i] = u
	}
	return out
}
