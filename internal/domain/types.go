package domain

import "time"

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderTutor Sender = "tutor"
)

// BookmarkType mirrors Sender for bookmark filtering.
type BookmarkType string

const (
	BookmarkUser  BookmarkType = "user"
	BookmarkTutor BookmarkType = "tutor"
)

// UnknownChatID is the sentinel stored on legacy bookmarks created before
// chats existed. Bookmarks carrying it are never pruned.
const UnknownChatID = "unknown"

type Chat struct {
	ID          string    `json:"id"`
	ChatName    string    `json:"chatName"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Attachment is the full file metadata stored on a user message when the
// message was sent with staged files. DownloadRoute points at the file
// serving endpoint when the upload is still available.
type Attachment struct {
	UploadID      string `json:"uploadId,omitempty"`
	FileName      string `json:"fileName"`
	MimeType      string `json:"mimeType,omitempty"`
	Size          int64  `json:"size,omitempty"`
	DownloadRoute string `json:"downloadRoute,omitempty"`
	ExtractedText string `json:"extractedText,omitempty"`
}

// FileContent is an extracted-text block carried on the tutor message that
// answered a file-bearing question.
type FileContent struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

type Message struct {
	ID                string        `json:"id"`
	Sender            Sender        `json:"sender"`
	Message           string        `json:"message"`
	Timestamp         time.Time     `json:"timestamp"`
	Chapter           string        `json:"chapter,omitempty"`
	Bookmarked        bool          `json:"bookmarked,omitempty"`
	EditedAt          *time.Time    `json:"editedAt,omitempty"`
	ReplacesMessageID string        `json:"replacesMessageId,omitempty"`
	FileAttachments   []Attachment  `json:"fileAttachments,omitempty"`
	StructuredContent []FileContent `json:"structuredFileContent,omitempty"`
}

type Bookmark struct {
	ID              string       `json:"id"`
	LinkedMessageID string       `json:"linkedMessageId"`
	Snippet         string       `json:"snippet"`
	Type            BookmarkType `json:"type"`
	ChatID          string       `json:"chatId"`
	Timestamp       time.Time    `json:"timestamp"`
}

type Upload struct {
	ID            string    `json:"id"`
	StorageKey    string    `json:"-"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	Chapter       string    `json:"chapter,omitempty"`
	ExtractedText string    `json:"extractedText,omitempty"`
	FileURL       string    `json:"fileUrl,omitempty"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// StagedFile is a file picked for the next outgoing message. It lives only
// in the client session and is cleared after send or chat switch.
type StagedFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
