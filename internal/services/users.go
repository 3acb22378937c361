package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/models"
)

type UserSearchResult struct {
	models.PublicProfile
	Email              string             `json:"email"`
	RelationshipStatus RelationshipStatus `json:"relationship_status"`
	RequestID          string             `json:"request_id,omitempty"`
	ChatID             string             `json:"chat_id,omitempty"`
}

type UserSearchPage struct {
	Items      []UserSearchResult `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

type UserService struct {
	db            *database.Database
	relationships *RelationshipService
}

func NewUserService(db *database.Database, relationships *RelationshipService) *UserService {
	return &UserService{db: db, relationships: relationships}
}

// Search finds other users by username or email and annotates each with the
// caller's relationship towards them. An empty query yields an empty page.
func (s *UserService) Search(ctx context.Context, userID, query string, page, perPage int) (*UserSearchPage, error) {
	page, perPage = NormalizePage(page, perPage, DefaultUsersPerPage)

	query = strings.TrimSpace(query)
	if query == "" {
		return &UserSearchPage{
			Items:      []UserSearchResult{},
			Pagination: NewPagination(page, perPage, 0),
		}, nil
	}

	users, total, err := s.db.SearchUsers(ctx, userID, query, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	rels, err := s.relationships.Relationships(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	items := make([]UserSearchResult, 0, len(users))
	for _, u := range users {
		rel := rels[u.ID]
		items = append(items, UserSearchResult{
			PublicProfile:      u.Profile(),
			Email:              u.Email,
			RelationshipStatus: rel.Status,
			RequestID:          rel.RequestID,
			ChatID:             rel.ChatID,
		})
	}
	return &UserSearchPage{Items: items, Pagination: NewPagination(page, perPage, total)}, nil
}
