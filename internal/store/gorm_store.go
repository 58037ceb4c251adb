package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"lawtutor/internal/domain"
)

// GormStore persists chats, messages, bookmarks, and uploads in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ChatModel{}, &MessageModel{}, &BookmarkModel{}, &UploadModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateChat(userID string, chat domain.Chat) error {
	m := ChatModel{
		ID:          chat.ID,
		UserID:      userID,
		ChatName:    chat.ChatName,
		CreatedAt:   chat.CreatedAt,
		LastUpdated: chat.LastUpdated,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_name", "last_updated"}),
	}).Create(&m).Error; err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (s *GormStore) ListChats(userID string) ([]domain.Chat, error) {
	var rows []ChatModel
	if err := s.db.Where("user_id = ?", userID).
		Order("last_updated DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats := make([]domain.Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, chatFromModel(r))
	}
	return chats, nil
}

func (s *GormStore) GetChat(userID, chatID string) (domain.Chat, bool, error) {
	var row ChatModel
	err := s.db.Where("user_id = ? AND id = ?", userID, chatID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Chat{}, false, nil
	}
	if err != nil {
		return domain.Chat{}, false, fmt.Errorf("get chat: %w", err)
	}
	return chatFromModel(row), true, nil
}

func (s *GormStore) RenameChat(userID, chatID, newName string) error {
	res := s.db.Model(&ChatModel{}).
		Where("user_id = ? AND id = ?", userID, chatID).
		Update("chat_name", newName)
	if res.Error != nil {
		return fmt.Errorf("rename chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) TouchChat(userID, chatID string, at time.Time) error {
	if err := s.db.Model(&ChatModel{}).
		Where("user_id = ? AND id = ?", userID, chatID).
		Update("last_updated", at).Error; err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

// DeleteChat removes the chat together with its messages and bookmarks.
func (s *GormStore) DeleteChat(userID, chatID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND chat_id = ?", userID, chatID).
			Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND chat_id = ?", userID, chatID).
			Delete(&BookmarkModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND id = ?", userID, chatID).Delete(&ChatModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *GormStore) AppendMessage(userID, chatID string, msg domain.Message) error {
	m, err := messageToModel(userID, chatID, msg)
	if err != nil {
		return err
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *GormStore) ListMessages(userID, chatID string) ([]domain.Message, error) {
	var rows []MessageModel
	if err := s.db.Where("user_id = ? AND chat_id = ?", userID, chatID).
		Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messagesFromModels(rows)
}

func (s *GormStore) ListAllMessages(userID string) ([]domain.Message, error) {
	var rows []MessageModel
	if err := s.db.Where("user_id = ?", userID).
		Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list all messages: %w", err)
	}
	return messagesFromModels(rows)
}

func (s *GormStore) UpdateMessageText(userID, chatID, messageID, text string, editedAt time.Time) error {
	res := s.db.Model(&MessageModel{}).
		Where("user_id = ? AND chat_id = ? AND id = ?", userID, chatID, messageID).
		Updates(map[string]any{"content": text, "edited_at": editedAt})
	if res.Error != nil {
		return fmt.Errorf("update message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetMessageBookmarked(userID, messageID string, bookmarked bool) error {
	if err := s.db.Model(&MessageModel{}).
		Where("user_id = ? AND id = ?", userID, messageID).
		Update("bookmarked", bookmarked).Error; err != nil {
		return fmt.Errorf("set message bookmarked: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteMessage(userID, chatID, messageID string) error {
	if err := s.db.Where("user_id = ? AND chat_id = ? AND id = ?", userID, chatID, messageID).
		Delete(&MessageModel{}).Error; err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteAllMessages(userID string) error {
	if err := s.db.Where("user_id = ?", userID).Delete(&MessageModel{}).Error; err != nil {
		return fmt.Errorf("delete all messages: %w", err)
	}
	return nil
}

func (s *GormStore) SaveBookmark(userID string, b domain.Bookmark) error {
	m := BookmarkModel{
		ID:              b.ID,
		UserID:          userID,
		LinkedMessageID: b.LinkedMessageID,
		Snippet:         b.Snippet,
		Type:            string(b.Type),
		ChatID:          b.ChatID,
		Timestamp:       b.Timestamp,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error; err != nil {
		return fmt.Errorf("save bookmark: %w", err)
	}
	return nil
}

func (s *GormStore) ListBookmarks(userID string) ([]domain.Bookmark, error) {
	var rows []BookmarkModel
	if err := s.db.Where("user_id = ?", userID).
		Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	out := make([]domain.Bookmark, 0, len(rows))
	for _, r := range rows {
		out = append(out, bookmarkFromModel(r))
	}
	return out, nil
}

func (s *GormStore) ListChatBookmarks(userID, chatID string) ([]domain.Bookmark, error) {
	var rows []BookmarkModel
	if err := s.db.Where("user_id = ? AND chat_id = ?", userID, chatID).
		Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chat bookmarks: %w", err)
	}
	out := make([]domain.Bookmark, 0, len(rows))
	for _, r := range rows {
		out = append(out, bookmarkFromModel(r))
	}
	return out, nil
}

func (s *GormStore) DeleteBookmark(userID, bookmarkID string) error {
	res := s.db.Where("user_id = ? AND id = ?", userID, bookmarkID).Delete(&BookmarkModel{})
	if res.Error != nil {
		return fmt.Errorf("delete bookmark: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteAllBookmarks(userID string) error {
	if err := s.db.Where("user_id = ?", userID).Delete(&BookmarkModel{}).Error; err != nil {
		return fmt.Errorf("delete all bookmarks: %w", err)
	}
	return nil
}

func (s *GormStore) SaveUpload(userID string, u domain.Upload) error {
	m := UploadModel{
		ID:            u.ID,
		UserID:        userID,
		StorageKey:    u.StorageKey,
		FileName:      u.FileName,
		FileType:      u.FileType,
		FileSize:      u.FileSize,
		Chapter:       u.Chapter,
		ExtractedText: u.ExtractedText,
		FileURL:       u.FileURL,
		UploadedAt:    u.UploadedAt,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&m).Error; err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

func (s *GormStore) ListUploads(userID string) ([]domain.Upload, error) {
	var rows []UploadModel
	if err := s.db.Where("user_id = ?", userID).
		Order("uploaded_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	out := make([]domain.Upload, 0, len(rows))
	for _, r := range rows {
		out = append(out, uploadFromModel(r))
	}
	return out, nil
}

func (s *GormStore) GetUpload(userID, uploadID string) (domain.Upload, bool, error) {
	var row UploadModel
	err := s.db.Where("user_id = ? AND id = ?", userID, uploadID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Upload{}, false, nil
	}
	if err != nil {
		return domain.Upload{}, false, fmt.Errorf("get upload: %w", err)
	}
	return uploadFromModel(row), true, nil
}

func (s *GormStore) DeleteUpload(userID, uploadID string) error {
	res := s.db.Where("user_id = ? AND id = ?", userID, uploadID).Delete(&UploadModel{})
	if res.Error != nil {
		return fmt.Errorf("delete upload: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func chatFromModel(m ChatModel) domain.Chat {
	return domain.Chat{
		ID:          m.ID,
		ChatName:    m.ChatName,
		CreatedAt:   m.CreatedAt,
		LastUpdated: m.LastUpdated,
	}
}

func bookmarkFromModel(m BookmarkModel) domain.Bookmark {
	return domain.Bookmark{
		ID:              m.ID,
		LinkedMessageID: m.LinkedMessageID,
		Snippet:         m.Snippet,
		Type:            domain.BookmarkType(m.Type),
		ChatID:          m.ChatID,
		Timestamp:       m.Timestamp,
	}
}

func uploadFromModel(m UploadModel) domain.Upload {
	return domain.Upload{
		ID:            m.ID,
		StorageKey:    m.StorageKey,
		FileName:      m.FileName,
		FileType:      m.FileType,
		FileSize:      m.FileSize,
		Chapter:       m.Chapter,
		ExtractedText: m.ExtractedText,
		FileURL:       m.FileURL,
		UploadedAt:    m.UploadedAt,
	}
}

func messageToModel(userID, chatID string, msg domain.Message) (MessageModel, error) {
	m := MessageModel{
		ID:                msg.ID,
		UserID:            userID,
		ChatID:            chatID,
		Sender:            string(msg.Sender),
		Content:           msg.Message,
		Chapter:           msg.Chapter,
		Bookmarked:        msg.Bookmarked,
		EditedAt:          msg.EditedAt,
		ReplacesMessageID: msg.ReplacesMessageID,
		Timestamp:         msg.Timestamp,
	}
	if len(msg.FileAttachments) > 0 {
		raw, err := json.Marshal(msg.FileAttachments)
		if err != nil {
			return m, fmt.Errorf("encode attachments: %w", err)
		}
		m.Attachments = datatypes.JSON(raw)
	}
	if len(msg.StructuredContent) > 0 {
		raw, err := json.Marshal(msg.StructuredContent)
		if err != nil {
			return m, fmt.Errorf("encode file contents: %w", err)
		}
		m.StructuredContent = datatypes.JSON(raw)
	}
	return m, nil
}

func messagesFromModels(rows []MessageModel) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msg := domain.Message{
			ID:                r.ID,
			Sender:            domain.Sender(r.Sender),
			Message:           r.Content,
			Timestamp:         r.Timestamp,
			Chapter:           r.Chapter,
			Bookmarked:        r.Bookmarked,
			EditedAt:          r.EditedAt,
			ReplacesMessageID: r.ReplacesMessageID,
		}
		if len(r.Attachments) > 0 {
			if err := json.Unmarshal(r.Attachments, &msg.FileAttachments); err != nil {
				return nil, fmt.Errorf("decode attachments: %w", err)
			}
		}
		if len(r.StructuredContent) > 0 {
			if err := json.Unmarshal(r.StructuredContent, &msg.StructuredContent); err != nil {
				return nil, fmt.Errorf("decode file contents: %w", err)
			}
		}
		out = append(out, msg)
	}
	return out, nil
}
