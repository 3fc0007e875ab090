package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate runs auto-migration for the chat tables.
func (r *GormRepository) Migrate() error {
	return r.db.AutoMigrate(
		&domain.UserModel{},
		&domain.RoomModel{},
		&domain.MessageModel{},
		&domain.MuteModel{},
	)
}

// FindOrCreateUser looks up a username, creating the row on first sight.
// Websocket users arrive without registering, so the row may have no
// password hash.
func (r *GormRepository) FindOrCreateUser(ctx context.Context, username string) (*domain.User, error) {
	var model domain.UserModel
	err := r.db.WithContext(ctx).
		Where(domain.UserModel{Username: username}).
		FirstOrCreate(&model).Error
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateUser creates a registered account. Returns ErrUsernameTaken when the
// username exists.
func (r *GormRepository) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	model := domain.UserModel{Username: username, PasswordHash: passwordHash}

	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		// Drivers without ErrDuplicatedKey translation: check for an
		// existing row before reporting the raw error.
		var existing domain.UserModel
		if lookupErr := r.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error; lookupErr == nil {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetUser returns a user by username.
func (r *GormRepository) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var model domain.UserModel
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrCreateRoom looks up a room by name, creating it lazily.
func (r *GormRepository) FindOrCreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	var model domain.RoomModel
	err := r.db.WithContext(ctx).
		Where(domain.RoomModel{Name: name}).
		FirstOrCreate(&model).Error
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetAdmin returns the room's persisted admin username, empty when no admin
// was assigned or the room does not exist yet.
func (r *GormRepository) GetAdmin(ctx context.Context, room string) (string, error) {
	var model domain.RoomModel
	err := r.db.WithContext(ctx).Where("name = ?", room).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return model.AdminUsername, nil
}

// SetAdmin persists the room's admin. Only fills a vacant slot so a restart
// race can never reassign an admin.
func (r *GormRepository) SetAdmin(ctx context.Context, room, username string) error {
	l := log.Ctx(ctx)

	res := r.db.WithContext(ctx).
		Model(&domain.RoomModel{}).
		Where("name = ? AND (admin_username = '' OR admin_username IS NULL)", room).
		Update("admin_username", username)
	if res.Error != nil {
		l.Error().Err(res.Error).Str(log.FieldRoom, room).Msg("failed to persist admin assignment")
		return res.Error
	}
	return nil
}

// SaveMessage persists a message and returns the assigned id.
func (r *GormRepository) SaveMessage(ctx context.Context, msg *domain.Message) (uint, error) {
	room, err := r.FindOrCreateRoom(ctx, msg.Room)
	if err != nil {
		return 0, err
	}

	model := domain.MessageToModel(msg, room.ID)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, err
	}

	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	return model.ID, nil
}

// SoftDeleteMessage flags a message deleted without removing its row.
func (r *GormRepository) SoftDeleteMessage(ctx context.Context, id uint, deletedBy string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{"deleted": true, "deleted_by": deletedBy})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListMessages returns the room's non-deleted messages, oldest first.
func (r *GormRepository) ListMessages(ctx context.Context, room string) ([]domain.Message, error) {
	roomModel, err := r.FindOrCreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}

	var models []domain.MessageModel
	err = r.db.WithContext(ctx).
		Where("room_id = ? AND deleted = ?", roomModel.ID, false).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain(room)
	}
	return messages, nil
}

// AddMute records a mute. The unique (room, username) index plus an
// on-conflict clause keeps re-mutes from duplicating records.
func (r *GormRepository) AddMute(ctx context.Context, room, username, mutedBy string) error {
	roomModel, err := r.FindOrCreateRoom(ctx, room)
	if err != nil {
		return err
	}

	mute := domain.MuteModel{RoomID: roomModel.ID, Username: username, MutedBy: mutedBy}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&mute).Error
}

// RemoveMute deletes a mute record. Removing a never-muted user is a no-op.
func (r *GormRepository) RemoveMute(ctx context.Context, room, username string) error {
	roomModel, err := r.FindOrCreateRoom(ctx, room)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("room_id = ? AND username = ?", roomModel.ID, username).
		Delete(&domain.MuteModel{}).Error
}

// ListMutes returns the muted usernames for a room.
func (r *GormRepository) ListMutes(ctx context.Context, room string) ([]string, error) {
	roomModel, err := r.FindOrCreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}

	var usernames []string
	err = r.db.WithContext(ctx).
		Model(&domain.MuteModel{}).
		Where("room_id = ?", roomModel.ID).
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, err
	}
	return usernames, nil
}
