package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	napboxdomain "github.com/telecoop/backoffice/internal/napbox/domain"
	plandomain "github.com/telecoop/backoffice/internal/plan/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       clientdomain.Repository
	PlanRepo   plandomain.Repository
	NapboxRepo napboxdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       clientdomain.Repository
	planRepo   plandomain.Repository
	napboxRepo napboxdomain.Repository
}

func New(p Params) clientdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("client.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		planRepo:   p.PlanRepo,
		napboxRepo: p.NapboxRepo,
	}
}

func (s *Service) Create(ctx context.Context, req clientdomain.CreateClientRequest) (clientdomain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return clientdomain.Client{}, clientdomain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return clientdomain.Client{}, clientdomain.ErrInvalidEmail
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil || planID == 0 {
		return clientdomain.Client{}, clientdomain.ErrInvalidPlan
	}
	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if plan == nil || !plan.IsActive {
		return clientdomain.Client{}, clientdomain.ErrInvalidPlan
	}

	var napboxID *snowflake.ID
	if raw := strings.TrimSpace(req.NapboxID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return clientdomain.Client{}, clientdomain.ErrInvalidNapbox
		}
		if req.PortNumber == nil || *req.PortNumber <= 0 {
			return clientdomain.Client{}, clientdomain.ErrInvalidPort
		}
		napboxID = &parsed
	}

	now := time.Now().UTC()
	installedAt := now
	if req.InstallationDate != nil {
		installedAt = req.InstallationDate.UTC()
	}

	id := s.genID.Generate()
	client := clientdomain.Client{
		ID:               id,
		AccountNumber:    accountNumber(id),
		Name:             name,
		Email:            strings.ToLower(email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		PlanID:           planID,
		NapboxID:         napboxID,
		PortNumber:       req.PortNumber,
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  plan.PriceCents,
		InstallationDate: installedAt,
		Metadata:         datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if napboxID != nil {
			box, err := s.napboxRepo.FindByID(ctx, tx, *napboxID)
			if err != nil {
				return err
			}
			if box == nil {
				return clientdomain.ErrInvalidNapbox
			}
			if err := s.napboxRepo.AssignPort(ctx, tx, *napboxID, *req.PortNumber, client.ID); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, &client)
	})
	if err != nil {
		return clientdomain.Client{}, err
	}

	return client, nil
}

func (s *Service) Update(ctx context.Context, req clientdomain.UpdateClientRequest) (clientdomain.Client, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return clientdomain.Client{}, err
	}

	client, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if client == nil {
		return clientdomain.Client{}, clientdomain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return clientdomain.Client{}, clientdomain.ErrInvalidName
		}
		client.Name = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			return clientdomain.Client{}, clientdomain.ErrInvalidEmail
		}
		client.Email = strings.ToLower(email)
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		client.Address = strings.TrimSpace(*req.Address)
	}

	if req.PlanID != nil {
		planID, err := snowflake.ParseString(strings.TrimSpace(*req.PlanID))
		if err != nil || planID == 0 {
			return clientdomain.Client{}, clientdomain.ErrInvalidPlan
		}
		if planID != client.PlanID {
			plan, err := s.planRepo.FindByID(ctx, s.db, planID)
			if err != nil {
				return clientdomain.Client{}, err
			}
			if plan == nil {
				return clientdomain.Client{}, clientdomain.ErrInvalidPlan
			}
			client.PlanID = planID
			client.MonthlyFeeCents = plan.PriceCents
		}
	}

	now := time.Now().UTC()
	if req.Status != nil {
		switch *req.Status {
		case clientdomain.ClientStatusActive:
			// Coming back from suspension resets the billing anchor.
			if client.Status == clientdomain.ClientStatusInactive {
				reactivatedAt := now
				client.ReactivatedAt = &reactivatedAt
			}
			client.Status = clientdomain.ClientStatusActive
		case clientdomain.ClientStatusInactive:
			client.Status = clientdomain.ClientStatusInactive
		default:
			return clientdomain.Client{}, clientdomain.ErrInvalidStatus
		}
	}

	movePort := req.NapboxID != nil
	var newNapboxID *snowflake.ID
	if movePort {
		if raw := strings.TrimSpace(*req.NapboxID); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				return clientdomain.Client{}, clientdomain.ErrInvalidNapbox
			}
			if req.PortNumber == nil || *req.PortNumber <= 0 {
				return clientdomain.Client{}, clientdomain.ErrInvalidPort
			}
			newNapboxID = &parsed
		}
	}

	client.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if movePort {
			if err := s.napboxRepo.ReleasePortByClient(ctx, tx, client.ID); err != nil {
				return err
			}
			client.NapboxID = nil
			client.PortNumber = nil
			if newNapboxID != nil {
				box, err := s.napboxRepo.FindByID(ctx, tx, *newNapboxID)
				if err != nil {
					return err
				}
				if box == nil {
					return clientdomain.ErrInvalidNapbox
				}
				if err := s.napboxRepo.AssignPort(ctx, tx, *newNapboxID, *req.PortNumber, client.ID); err != nil {
					return err
				}
				client.NapboxID = newNapboxID
				client.PortNumber = req.PortNumber
			}
		}
		return s.repo.Update(ctx, tx, client)
	})
	if err != nil {
		return clientdomain.Client{}, err
	}

	return *client, nil
}

func (s *Service) List(ctx context.Context, req clientdomain.ListClientRequest) (clientdomain.ListClientResponse, error) {
	filter := clientdomain.ListClientFilter{
		PlanID: strings.TrimSpace(req.PlanID),
		Search: strings.TrimSpace(req.Search),
	}
	switch status := strings.TrimSpace(req.Status); status {
	case "":
	case string(clientdomain.ClientStatusActive), string(clientdomain.ClientStatusInactive):
		filter.Status = clientdomain.ClientStatus(status)
	default:
		return clientdomain.ListClientResponse{}, clientdomain.ErrInvalidStatus
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return clientdomain.ListClientResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(client *clientdomain.Client) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        client.ID.String(),
			CreatedAt: client.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	clients := make([]clientdomain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}

	resp := clientdomain.ListClientResponse{Clients: clients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req clientdomain.GetClientRequest) (clientdomain.Client, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return clientdomain.Client{}, err
	}

	client, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if client == nil {
		return clientdomain.Client{}, clientdomain.ErrNotFound
	}

	return *client, nil
}

func (s *Service) Stats(ctx context.Context) (clientdomain.Stats, error) {
	return s.repo.Stats(ctx, s.db)
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, clientdomain.ErrInvalidID
	}
	return id, nil
}

func accountNumber(id snowflake.ID) string {
	return "TC-" + strings.ToUpper(strconv.FormatInt(id.Int64(), 36))
}
