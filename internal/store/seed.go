package store

import (
	"context"
	"fmt"
	"time"
)

// DemoUsers is the fixture inserted by Seed.
var DemoUsers = []User{
	{Name: "Sarah Johnson", Email: "sarah@example.com", Avatar: "https://placehold.co/100"},
	{Name: "Michael Chen", Email: "michael@example.com", Avatar: "https://placehold.co/100"},
	{Name: "Emily Wilson", Email: "emily@example.com", Avatar: "https://placehold.co/100"},
	{Name: "John Doe", Email: "john@example.com", Avatar: "https://placehold.co/100"},
}

// Seed inserts DemoUsers when the users table is empty and reports how many were created.
func Seed(ctx context.Context, users UserStore) (int, error) {
	n, err := users.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for i := range DemoUsers {
		u := DemoUsers[i]
		u.Status = StatusOffline
		u.LastSeen = &now
		if err := users.CreateUser(ctx, &u); err != nil {
			return i, fmt.Errorf("create %s: %w", u.Email, err)
		}
	}
	return len(DemoUsers), nil
}
