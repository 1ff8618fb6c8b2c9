package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
)

// EventNewMessage is pushed to both participants when a message is sent.
const EventNewMessage = "new_message"

type ChatService struct {
	DB     *gorm.DB
	Pusher realtime.Pusher
}

func NewChatService(db *gorm.DB, pusher realtime.Pusher) *ChatService {
	return &ChatService{DB: db, Pusher: pusher}
}

type UserMini struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationOut struct {
	ID          string           `json:"id"`
	ClientID    string           `json:"client_id"`
	ProviderID  string           `json:"provider_id"`
	JobID       *uuid.UUID       `json:"job_id,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
	UnreadCount int              `json:"unread_count"`
	Partner     *UserMini        `json:"partner,omitempty"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
}

func toMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           m.Type,
		Text:           m.Text,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// CreateOrGet returns the conversation between the viewer and partnerID,
// creating it on first contact. One side must be a client and the other a provider.
func (s *ChatService) CreateOrGet(ctx context.Context, viewerID, partnerID uuid.UUID, jobID *uuid.UUID) (*models.Conversation, bool, error) {
	if viewerID == partnerID {
		return nil, false, apperrors.Validation("cannot start a conversation with yourself")
	}

	var users []models.User
	if err := s.DB.WithContext(ctx).Find(&users, "id IN ?", []uuid.UUID{viewerID, partnerID}).Error; err != nil {
		return nil, false, err
	}
	byID := map[uuid.UUID]models.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	viewer, ok := byID[viewerID]
	if !ok {
		return nil, false, apperrors.NotFound("user")
	}
	partner, ok := byID[partnerID]
	if !ok {
		return nil, false, apperrors.NotFound("user")
	}

	var clientID, providerID uuid.UUID
	switch {
	case viewer.Role == models.RoleClient && partner.Role == models.RoleProvider:
		clientID, providerID = viewer.ID, partner.ID
	case viewer.Role == models.RoleProvider && partner.Role == models.RoleClient:
		clientID, providerID = partner.ID, viewer.ID
	default:
		return nil, false, apperrors.Validation("conversations are between a client and a provider")
	}

	if jobID != nil {
		var job models.Job
		if err := s.DB.WithContext(ctx).First(&job, "id = ?", *jobID).Error; err != nil {
			return nil, false, apperrors.FromDB(err, "job")
		}
		if job.ClientID != clientID {
			return nil, false, apperrors.Forbidden("job belongs to another client")
		}
	}

	// Check if conversation exists
	q := s.DB.WithContext(ctx).Where("client_id = ? AND provider_id = ?", clientID, providerID)
	if jobID != nil {
		q = q.Where("job_id = ?", *jobID)
	} else {
		q = q.Where("job_id IS NULL")
	}
	var conv models.Conversation
	err := q.Order("updated_at DESC").First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{
		ClientID:      clientID,
		ProviderID:    providerID,
		JobID:         jobID,
		LastMessageAt: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

// List returns the viewer's conversations, most recent activity first.
func (s *ChatService) List(ctx context.Context, viewerID uuid.UUID) ([]ConversationOut, error) {
	var convs []models.Conversation
	if err := s.DB.WithContext(ctx).
		Where("client_id = ? OR provider_id = ?", viewerID, viewerID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}

	partnerIDs := make([]uuid.UUID, 0, len(convs))
	for _, conv := range convs {
		partnerIDs = append(partnerIDs, partnerOf(&conv, viewerID))
	}
	partners := map[uuid.UUID]*UserMini{}
	if len(partnerIDs) > 0 {
		var users []models.User
		if err := s.DB.WithContext(ctx).Select("id", "name", "role").Find(&users, "id IN ?", partnerIDs).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			partners[u.ID] = &UserMini{ID: u.ID.String(), Name: u.Name, Role: string(u.Role)}
		}
	}

	out := make([]ConversationOut, 0, len(convs))
	for i := range convs {
		conv := &convs[i]

		var lastPtr *MessageResponse
		var last models.Message
		if err := s.DB.WithContext(ctx).
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").
			Limit(1).
			First(&last).Error; err == nil {
			resp := toMessageResponse(&last)
			lastPtr = &resp
		}

		out = append(out, ConversationOut{
			ID:          conv.ID.String(),
			ClientID:    conv.ClientID.String(),
			ProviderID:  conv.ProviderID.String(),
			JobID:       conv.JobID,
			UpdatedAt:   conv.LastMessageAt,
			UnreadCount: unreadFor(conv, viewerID),
			Partner:     partners[partnerOf(conv, viewerID)],
			LastMessage: lastPtr,
		})
	}
	return out, nil
}

func partnerOf(conv *models.Conversation, viewerID uuid.UUID) uuid.UUID {
	if conv.ClientID == viewerID {
		return conv.ProviderID
	}
	return conv.ClientID
}

func unreadFor(conv *models.Conversation, viewerID uuid.UUID) int {
	if conv.ClientID == viewerID {
		return conv.ClientUnread
	}
	return conv.ProviderUnread
}

func unreadColumn(conv *models.Conversation, userID uuid.UUID) string {
	if conv.ClientID == userID {
		return "client_unread"
	}
	return "provider_unread"
}

func (s *ChatService) load(ctx context.Context, viewerID, convID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.WithContext(ctx).First(&conv, "id = ?", convID).Error; err != nil {
		return nil, apperrors.FromDB(err, "conversation")
	}
	if !conv.Has(viewerID) {
		return nil, apperrors.Forbidden("access denied")
	}
	return &conv, nil
}

// Messages returns the conversation history and marks it read for the viewer.
func (s *ChatService) Messages(ctx context.Context, viewerID, convID uuid.UUID) ([]MessageResponse, error) {
	conv, err := s.load(ctx, viewerID, convID)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	if err := s.markRead(ctx, conv, viewerID); err != nil {
		return nil, err
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	return out, nil
}

// MarkRead marks every message from the partner as read and resets the viewer's counter.
func (s *ChatService) MarkRead(ctx context.Context, viewerID, convID uuid.UUID) error {
	conv, err := s.load(ctx, viewerID, convID)
	if err != nil {
		return err
	}
	return s.markRead(ctx, conv, viewerID)
}

func (s *ChatService) markRead(ctx context.Context, conv *models.Conversation, viewerID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id != ? AND is_read = ?", conv.ID, viewerID, false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": time.Now(),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update(unreadColumn(conv, viewerID), 0).Error
	})
}

// Send stores a message, bumps the recipient's unread counter and pushes it to both sides.
func (s *ChatService) Send(ctx context.Context, senderID, convID uuid.UUID, text string) (*MessageResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("text is required")
	}

	conv, err := s.load(ctx, senderID, convID)
	if err != nil {
		return nil, err
	}
	recipientID := partnerOf(conv, senderID)

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		col := unreadColumn(conv, recipientID)
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"last_message_at": msg.CreatedAt,
				col:               gorm.Expr(col + " + 1"),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	resp := toMessageResponse(&msg)
	if s.Pusher != nil {
		s.Pusher.PushToConversation(conv.ClientID, conv.ProviderID, EventNewMessage, resp)
	}
	return &resp, nil
}

// UnreadTotal sums the viewer's unread counters across conversations.
func (s *ChatService) UnreadTotal(ctx context.Context, viewerID uuid.UUID) (int64, error) {
	var total struct{ N int64 }
	err := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Select("COALESCE(SUM(CASE WHEN client_id = ? THEN client_unread ELSE provider_unread END), 0) AS n", viewerID).
		Where("client_id = ? OR provider_id = ?", viewerID, viewerID).
		Scan(&total).Error
	return total.N, err
}

// DeleteForJob removes every conversation tagged with jobID and its messages.
func DeleteForJob(tx *gorm.DB, jobID uuid.UUID) (int64, error) {
	return deleteWhere(tx, "job_id = ?", jobID)
}

// DeleteForJobPair removes the job's conversations between one client and one provider.
func DeleteForJobPair(tx *gorm.DB, jobID, clientID, providerID uuid.UUID) (int64, error) {
	return deleteWhere(tx, "job_id = ? AND client_id = ? AND provider_id = ?", jobID, clientID, providerID)
}

func deleteWhere(tx *gorm.DB, query string, args ...interface{}) (int64, error) {
	var ids []uuid.UUID
	if err := tx.Model(&models.Conversation{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Conversation{})
	return res.RowsAffected, res.Error
}
