package logic

import (
	"context"
	"strings"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/model"
	"github.com/blues/trustfunds/internal/repository"
	"gorm.io/gorm"
)

// MessageInput 留言参数
type MessageInput struct {
	Sender  string
	Date    string
	Message string
}

// ForumLogic 众筹活动留言板
type ForumLogic struct {
	forum     *repository.ForumRepository
	campaigns *repository.CampaignRepository
	users     *repository.UserRepository
}

// NewForumLogic 创建留言业务逻辑
func NewForumLogic(db *gorm.DB) *ForumLogic {
	return &ForumLogic{
		forum:     repository.NewForumRepository(db),
		campaigns: repository.NewCampaignRepository(db),
		users:     repository.NewUserRepository(db),
	}
}

// ListMessages 按写入顺序返回留言，并补充发送者名称
func (l *ForumLogic) ListMessages(ctx context.Context, campaignId string) ([]model.ForumMessageModel, error) {
	if _, err := l.campaigns.FindByID(ctx, campaignId); err != nil {
		return nil, err
	}

	messages, err := l.forum.ListByCampaign(ctx, campaignId)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]string, 0, len(messages))
	seen := make(map[string]bool, len(messages))
	for _, m := range messages {
		if !seen[m.Sender] {
			seen[m.Sender] = true
			ids = append(ids, m.Sender)
		}
	}
	names, err := l.users.FindNamesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].SenderName = names[messages[i].Sender]
	}
	return messages, nil
}

// Send 追加留言，sender 必须是当前登录用户
func (l *ForumLogic) Send(ctx context.Context, campaignId, userId string, in MessageInput) (*model.ForumMessageModel, error) {
	sender := strings.TrimSpace(in.Sender)
	text := strings.TrimSpace(in.Message)
	if sender == "" || strings.TrimSpace(in.Date) == "" || text == "" {
		return nil, apperror.Validation("Sender, date, or message missing!")
	}
	if sender != userId {
		return nil, apperror.Forbidden("Sender must be the signed-in user")
	}
	date, err := parseMessageDate(in.Date)
	if err != nil {
		return nil, apperror.Validation("date must be RFC3339 or YYYY-MM-DD")
	}

	if _, err := l.campaigns.FindByID(ctx, campaignId); err != nil {
		return nil, err
	}

	message := &model.ForumMessageModel{
		CampaignId: campaignId,
		Sender:     sender,
		Date:       date,
		Message:    text,
	}
	if err := l.forum.Append(ctx, message); err != nil {
		return nil, err
	}

	if user, err := l.users.FindByID(ctx, sender); err == nil {
		message.SenderName = user.Name
	}
	return message, nil
}

func parseMessageDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
