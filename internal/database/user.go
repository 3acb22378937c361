package database

import (
	"context"
	"strings"
	"time"

	"github.com/thereayou/whisper/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Create(user).Error)
}

func (d *Database) UpdateUser(ctx context.Context, user *models.User) error {
	return translate(d.db.WithContext(ctx).Save(user).Error)
}

func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// LockUsers takes row locks on the given users, soft-deleted ones included,
// in id order. Transactions that lock the same pair run one after the other.
// It only makes sense inside Transaction. sqlite has no row locks and relies
// on its single connection instead.
func (d *Database) LockUsers(ctx context.Context, ids ...string) error {
	var locked []string
	err := d.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
	if err != nil {
		return err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	if len(locked) != len(want) {
		return ErrNotFound
	}
	return nil
}

// GetUsersIncludingDeleted loads users by id, soft-deleted ones included,
// keyed by id. Missing ids are simply absent from the map.
func (d *Database) GetUsersIncludingDeleted(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByLogin matches either the username or the email.
func (d *Database) FindUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	user := models.User{}
	err := d.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UsernameOrEmailTaken checks soft-deleted rows too, since the unique
// indexes still cover them.
func (d *Database) UsernameOrEmailTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var count int64
	if err = d.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, false, err
	}
	emailTaken = count > 0

	if err = d.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, false, err
	}
	usernameTaken = count > 0
	return usernameTaken, emailTaken, nil
}

func (d *Database) UpdateLastSeen(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now().UTC()).Error
}

// SoftDeleteUser hides the user from lookups. Memberships, messages and
// chat requests stay in place.
func (d *Database) SoftDeleteUser(ctx context.Context, id string) error {
	res := d.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers does a case-insensitive substring match on username or email,
// excluding excludeID. page is 1-indexed.
func (d *Database) SearchUsers(ctx context.Context, excludeID, query string, page, perPage int) ([]models.User, int64, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	q := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id <> ?", excludeID).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, ok := PageOffset(page, perPage)
	if !ok || int64(offset) >= total {
		return []models.User{}, total, nil
	}

	var users []models.User
	err := q.Order("username ASC").
		Offset(offset).
		Limit(perPage).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
