package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/oblivion-social/oblivion-api/internal/chain"
	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
)

var amountRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// CampaignReader 合约上的众筹活动
type CampaignReader interface {
	GetCampaign(ctx context.Context, id string) (*chain.Campaign, error)
	GetAllCampaigns(ctx context.Context) ([]*chain.Campaign, error)
	GetCampaignCount(ctx context.Context) (int64, error)
}

// CampaignView 链上数据 + 本地点赞与最终金额
type CampaignView struct {
	*chain.Campaign
	Likes       int64  `json:"likes"`
	Liked       bool   `json:"liked"`
	FinalAmount string `json:"finalAmount,omitempty"`
}

type CampaignService interface {
	ListCampaigns(ctx context.Context, viewerID string) ([]*CampaignView, error)
	GetCampaign(ctx context.Context, id, viewerID string) (*CampaignView, error)
	CampaignCount(ctx context.Context) (int64, error)
	ToggleCampaignLike(ctx context.Context, userID, campaignID string) (bool, int64, error)
	SetFinalAmount(ctx context.Context, userID, campaignID, amount string) error
	GetFinalAmount(ctx context.Context, campaignID string) (*model.CampaignFinalAmount, error)
}

type campaignService struct {
	reader        CampaignReader
	repo          repository.CampaignRepository
	notifications NotificationService
}

// NewCampaignService reader 为 nil 时链上读取返回 ErrChainUnavailable
func NewCampaignService(reader CampaignReader, repo repository.CampaignRepository, notifications NotificationService) CampaignService {
	return &campaignService{reader: reader, repo: repo, notifications: notifications}
}

func (s *campaignService) ListCampaigns(ctx context.Context, viewerID string) ([]*CampaignView, error) {
	if s.reader == nil {
		return nil, ErrChainUnavailable
	}
	list, err := s.reader.GetAllCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, viewerID, list)
}

func (s *campaignService) GetCampaign(ctx context.Context, id, viewerID string) (*CampaignView, error) {
	cp, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, viewerID, []*chain.Campaign{cp})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *campaignService) CampaignCount(ctx context.Context) (int64, error) {
	if s.reader == nil {
		return 0, ErrChainUnavailable
	}
	return s.reader.GetCampaignCount(ctx)
}

// ToggleCampaignLike 点赞通知活动发起人
func (s *campaignService) ToggleCampaignLike(ctx context.Context, userID, campaignID string) (bool, int64, error) {
	cp, err := s.fetch(ctx, campaignID)
	if err != nil {
		return false, 0, err
	}
	liked, count, err := s.repo.ToggleLike(ctx, campaignID, userID)
	if err != nil {
		return false, 0, err
	}
	if liked {
		metrics.Actions.WithLabelValues("campaign_like").Inc()
		s.notifications.Send(&model.Notification{
			Type:       model.NotifyCampaignLike,
			FromUserID: userID,
			ToUserID:   cp.Creator,
			CampaignID: campaignID,
		})
	}
	return liked, count, nil
}

// SetFinalAmount 只有发起人可以登记最终金额
func (s *campaignService) SetFinalAmount(ctx context.Context, userID, campaignID, amount string) error {
	amount = strings.TrimSpace(amount)
	if !amountRe.MatchString(amount) {
		return ErrInvalidAmount
	}
	cp, err := s.fetch(ctx, campaignID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(cp.Creator, userID) {
		return ErrForbidden
	}
	return s.repo.SetFinalAmount(ctx, campaignID, amount, userID)
}

func (s *campaignService) GetFinalAmount(ctx context.Context, campaignID string) (*model.CampaignFinalAmount, error) {
	rec, err := s.repo.GetFinalAmount(ctx, campaignID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	return rec, err
}

func (s *campaignService) fetch(ctx context.Context, id string) (*chain.Campaign, error) {
	if s.reader == nil {
		return nil, ErrChainUnavailable
	}
	cp, err := s.reader.GetCampaign(ctx, id)
	if errors.Is(err, chain.ErrCampaignNotFound) {
		return nil, ErrCampaignNotFound
	}
	return cp, err
}

func (s *campaignService) enrich(ctx context.Context, viewerID string, list []*chain.Campaign) ([]*CampaignView, error) {
	ids := make([]string, len(list))
	for i, cp := range list {
		ids[i] = cp.ID
	}
	likes, err := s.repo.CountLikes(ctx, ids)
	if err != nil {
		return nil, err
	}
	amounts, err := s.repo.ListFinalAmounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*CampaignView, len(list))
	for i, cp := range list {
		v := &CampaignView{Campaign: cp, Likes: likes[cp.ID], FinalAmount: amounts[cp.ID]}
		if viewerID != "" {
			if v.Liked, err = s.repo.HasLiked(ctx, cp.ID, viewerID); err != nil {
				return nil, err
			}
		}
		out[i] = v
	}
	return out, nil
}
