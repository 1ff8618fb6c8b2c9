package user

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/wallet"
)

type UserService struct {
	DB     *gorm.DB
	Chat   *chat.ChatService
	Wallet *wallet.WalletService
}

func NewUserService(db *gorm.DB, chatSvc *chat.ChatService, walletSvc *wallet.WalletService) *UserService {
	return &UserService{DB: db, Chat: chatSvc, Wallet: walletSvc}
}

func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	return &u, nil
}

// ProfileInput is a partial update; nil fields are left untouched.
type ProfileInput struct {
	Name       *string
	Phone      *string
	Bio        *string
	Skills     *[]string
	HourlyRate *decimal.Decimal
	Address    *string
	City       *string
	Latitude   *float64
	Longitude  *float64
}

// UpdateProfile writes only the fields present in in. Stats columns are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Phone != nil {
		if p := strings.TrimSpace(*in.Phone); p == "" {
			updates["phone"] = nil
		} else {
			updates["phone"] = p
		}
	}
	if in.Bio != nil {
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.Skills != nil {
		updates["skills"] = datatypes.NewJSONSlice(normalize(*in.Skills))
	}
	if in.HourlyRate != nil {
		if in.HourlyRate.IsNegative() {
			return nil, apperrors.Validation("hourly rate cannot be negative")
		}
		updates["hourly_rate"] = *in.HourlyRate
	}
	if in.Address != nil {
		updates["address"] = strings.TrimSpace(*in.Address)
	}
	if in.City != nil {
		updates["city"] = strings.TrimSpace(*in.City)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, apperrors.Validation("latitude and longitude must be set together")
	}
	if in.Latitude != nil {
		if *in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180 {
			return nil, apperrors.Validation("coordinates out of range")
		}
		updates["latitude"] = *in.Latitude
		updates["longitude"] = *in.Longitude
	}

	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, apperrors.Conflict("PHONE_TAKEN", "phone number is already registered")
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NotFound("user")
		}
	}
	return s.Me(ctx, userID)
}

// ProviderStats is the summary shown on the provider dashboard.
type ProviderStats struct {
	CompletedJobs      int64                      `json:"completed_jobs"`
	Rating             float64                    `json:"rating"`
	TotalRatings       int64                      `json:"total_ratings"`
	TotalEarnings      decimal.Decimal            `json:"total_earnings"`
	ActiveApplications int64                      `json:"active_applications"`
	ActiveJobs         int64                      `json:"active_jobs"`
	PendingDirectJobs  int64                      `json:"pending_direct_jobs"`
	UnreadChats        int64                      `json:"unread_chats"`
	RecentTransactions []models.WalletTransaction `json:"recent_transactions"`
}

func (s *UserService) ProviderStats(ctx context.Context, userID uuid.UUID) (*ProviderStats, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleProvider {
		return nil, apperrors.Forbidden("provider only")
	}

	out := &ProviderStats{
		CompletedJobs: u.CompletedJobs,
		Rating:        u.Rating,
		TotalRatings:  u.TotalRatings,
		TotalEarnings: u.TotalEarnings,
	}
	gdb := s.DB.WithContext(ctx)

	if err := gdb.Model(&models.Application{}).
		Where("provider_id = ? AND status IN ?", userID, []models.ApplicationStatus{
			models.ApplicationApplied,
			models.ApplicationShortlisted,
		}).
		Count(&out.ActiveApplications).Error; err != nil {
		return nil, err
	}
	if err := gdb.Model(&models.Job{}).
		Where("assigned_provider_id = ? AND status = ?", userID, models.JobInProgress).
		Count(&out.ActiveJobs).Error; err != nil {
		return nil, err
	}
	if err := gdb.Model(&models.DirectJob{}).
		Where("provider_id = ? AND status IN ?", userID, []models.DirectJobStatus{
			models.DirectJobRequested,
			models.DirectJobInProgress,
		}).
		Count(&out.PendingDirectJobs).Error; err != nil {
		return nil, err
	}

	if s.Chat != nil {
		if out.UnreadChats, err = s.Chat.UnreadTotal(ctx, userID); err != nil {
			log.Printf("[DashboardStats] unread chats for %s: %v", userID, err)
		}
	}
	if s.Wallet != nil {
		if out.RecentTransactions, err = s.Wallet.History(ctx, userID, 10); err != nil {
			log.Printf("[DashboardStats] wallet history for %s: %v", userID, err)
		}
	}
	if out.RecentTransactions == nil {
		out.RecentTransactions = []models.WalletTransaction{}
	}
	return out, nil
}

func normalize(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, sk := range skills {
		sk = strings.ToLower(strings.TrimSpace(sk))
		if sk == "" || seen[sk] {
			continue
		}
		seen[sk] = true
		out = append(out, sk)
	}
	return out
}
