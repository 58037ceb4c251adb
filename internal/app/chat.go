package app

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"lawtutor/internal/ai"
	"lawtutor/internal/domain"
	"lawtutor/internal/events"
	"lawtutor/internal/store"
	"lawtutor/internal/util"
)

// SendMessageRequest is one outgoing question, optionally with staged
// files referencing earlier uploads.
type SendMessageRequest struct {
	ChatID      string
	Message     string
	Chapter     string
	StagedFiles []domain.StagedFile
}

// SendMessageResult carries everything the client needs to render the
// exchange without refetching the chat.
type SendMessageResult struct {
	ChatID            string
	Reply             string
	Timestamp         time.Time
	Chapter           string
	UserMessageID     string
	AIMessageID       string
	StructuredContent []domain.FileContent
	ChatRenamed       bool
	NewChatName       string
}

// SendMessage appends the user turn, generates the tutor reply, and
// persists both. A missing or unknown chat ID creates a fresh chat.
func (a *App) SendMessage(ctx context.Context, userID string, req SendMessageRequest) (SendMessageResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" && len(req.StagedFiles) == 0 {
		return SendMessageResult{}, invalidf("message is required")
	}

	chat, err := a.ensureChat(userID, req.ChatID)
	if err != nil {
		return SendMessageResult{}, err
	}

	attachments, contents, err := a.resolveStagedFiles(userID, req.StagedFiles)
	if err != nil {
		return SendMessageResult{}, err
	}

	history, err := a.store.ListMessages(userID, chat.ID)
	if err != nil {
		return SendMessageResult{}, err
	}

	now := time.Now().UTC()
	userMsg := domain.Message{
		ID:              util.NewID(),
		Sender:          domain.SenderUser,
		Message:         text,
		Timestamp:       now,
		Chapter:         req.Chapter,
		FileAttachments: attachments,
	}
	if err := a.store.AppendMessage(userID, chat.ID, userMsg); err != nil {
		return SendMessageResult{}, err
	}

	docs := make([]string, 0, len(contents))
	for _, c := range contents {
		docs = append(docs, c.Content)
	}
	turns := historyTurns(history)
	turns = append(turns, ai.ChatTurn{Role: "user", Content: text})
	reply, err := a.gen.GenerateReply(ctx, ai.BuildSystemPrompt(req.Chapter, text, docs), turns)
	if err != nil {
		return SendMessageResult{}, err
	}

	replyAt := time.Now().UTC()
	aiMsg := domain.Message{
		ID:                util.NewID(),
		Sender:            domain.SenderTutor,
		Message:           reply,
		Timestamp:         replyAt,
		Chapter:           req.Chapter,
		StructuredContent: contents,
	}
	if err := a.store.AppendMessage(userID, chat.ID, aiMsg); err != nil {
		return SendMessageResult{}, err
	}
	if err := a.store.TouchChat(userID, chat.ID, replyAt); err != nil {
		return SendMessageResult{}, err
	}

	result := SendMessageResult{
		ChatID:            chat.ID,
		Reply:             reply,
		Timestamp:         replyAt,
		Chapter:           req.Chapter,
		UserMessageID:     userMsg.ID,
		AIMessageID:       aiMsg.ID,
		StructuredContent: contents,
	}

	// First completed exchange gives the chat a real name.
	if chat.ChatName == DefaultChatName && len(history) == 0 {
		newName := titleFromMessage(text)
		if newName != "" && newName != DefaultChatName {
			if err := a.store.RenameChat(userID, chat.ID, newName); err == nil {
				result.ChatRenamed = true
				result.NewChatName = newName
			}
		}
	}

	a.publish(events.MessageCreated, map[string]string{
		"userId": userID, "chatId": chat.ID, "messageId": aiMsg.ID,
	})
	return result, nil
}

// EditRegenerateResult reports the regenerated reply.
type EditRegenerateResult struct {
	Reply             string
	Timestamp         time.Time
	AIMessageID       string
	ReplacesMessageID string
}

// EditRegenerate rewrites a user message in place, drops the tutor reply
// that followed it, and generates a fresh one. A missing follow-up reply
// is not an error.
func (a *App) EditRegenerate(ctx context.Context, userID, chatID, messageID, newText string) (EditRegenerateResult, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return EditRegenerateResult{}, invalidf("newText is required")
	}

	msgs, err := a.store.ListMessages(userID, chatID)
	if err != nil {
		return EditRegenerateResult{}, err
	}
	idx := -1
	for i, m := range msgs {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return EditRegenerateResult{}, store.ErrNotFound
	}
	if msgs[idx].Sender != domain.SenderUser {
		return EditRegenerateResult{}, invalidf("only user messages can be edited")
	}

	now := time.Now().UTC()
	if err := a.store.UpdateMessageText(userID, chatID, messageID, newText, now); err != nil {
		return EditRegenerateResult{}, err
	}

	var replacedID string
	if idx+1 < len(msgs) && msgs[idx+1].Sender == domain.SenderTutor {
		replacedID = msgs[idx+1].ID
		if err := a.store.DeleteMessage(userID, chatID, replacedID); err != nil {
			return EditRegenerateResult{}, err
		}
	}

	turns := historyTurns(msgs[:idx])
	turns = append(turns, ai.ChatTurn{Role: "user", Content: newText})
	reply, err := a.gen.GenerateReply(ctx, ai.BuildSystemPrompt(msgs[idx].Chapter, newText, nil), turns)
	if err != nil {
		return EditRegenerateResult{}, err
	}

	replyAt := time.Now().UTC()
	aiMsg := domain.Message{
		ID:                util.NewID(),
		Sender:            domain.SenderTutor,
		Message:           reply,
		Timestamp:         replyAt,
		Chapter:           msgs[idx].Chapter,
		ReplacesMessageID: replacedID,
	}
	if err := a.store.AppendMessage(userID, chatID, aiMsg); err != nil {
		return EditRegenerateResult{}, err
	}
	if err := a.store.TouchChat(userID, chatID, replyAt); err != nil {
		return EditRegenerateResult{}, err
	}

	a.publish(events.MessageCreated, map[string]string{
		"userId": userID, "chatId": chatID, "messageId": aiMsg.ID,
	})
	return EditRegenerateResult{
		Reply:             reply,
		Timestamp:         replyAt,
		AIMessageID:       aiMsg.ID,
		ReplacesMessageID: replacedID,
	}, nil
}

func (a *App) ensureChat(userID, chatID string) (domain.Chat, error) {
	if chatID != "" {
		chat, ok, err := a.store.GetChat(userID, chatID)
		if err != nil {
			return domain.Chat{}, err
		}
		if ok {
			return chat, nil
		}
	}
	return a.CreateChat(userID, DefaultChatName)
}

// resolveStagedFiles matches staged file references against stored uploads
// and builds the attachment metadata kept on the user message. Names that
// match nothing become bare attachments without extracted text.
func (a *App) resolveStagedFiles(userID string, staged []domain.StagedFile) ([]domain.Attachment, []domain.FileContent, error) {
	if len(staged) == 0 {
		return nil, nil, nil
	}
	uploads, err := a.store.ListUploads(userID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]domain.Upload, len(uploads))
	byName := make(map[string]domain.Upload, len(uploads))
	for _, u := range uploads {
		byID[u.ID] = u
		if _, exists := byName[u.FileName]; !exists {
			byName[u.FileName] = u
		}
	}

	var attachments []domain.Attachment
	var contents []domain.FileContent
	for _, f := range staged {
		upload, ok := byID[f.ID]
		if !ok {
			upload, ok = byName[f.Name]
		}
		if !ok {
			attachments = append(attachments, domain.Attachment{FileName: f.Name, MimeType: f.Type})
			continue
		}
		attachments = append(attachments, domain.Attachment{
			UploadID:      upload.ID,
			FileName:      upload.FileName,
			MimeType:      f.Type,
			Size:          upload.FileSize,
			DownloadRoute: "/api/files/" + upload.ID,
			ExtractedText: upload.ExtractedText,
		})
		if upload.ExtractedText != "" {
			contents = append(contents, domain.FileContent{
				Filename: upload.FileName,
				Content:  upload.ExtractedText,
				Type:     upload.FileType,
			})
		}
	}
	return attachments, contents, nil
}

func historyTurns(msgs []domain.Message) []ai.ChatTurn {
	turns := make([]ai.ChatTurn, 0, len(msgs)+1)
	for _, m := range msgs {
		role := "user"
		if m.Sender == domain.SenderTutor {
			role = "assistant"
		}
		turns = append(turns, ai.ChatTurn{Role: role, Content: m.Message})
	}
	return turns
}

// titleFromMessage derives a chat name from the first four words of the
// first question.
func titleFromMessage(text string) string {
	words := strings.Fields(text)
	if len(words) > 4 {
		words = words[:4]
	}
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func (a *App) publish(routingKey string, payload any) {
	if err := a.events.Publish(context.Background(), routingKey, payload); err != nil {
		slog.Warn("event publish failed", "event", routingKey, "error", err)
	}
}
