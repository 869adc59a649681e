package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/napbox/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPortCount = 256

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("napbox.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateNapboxRequest) (domain.Napbox, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.Napbox{}, domain.ErrInvalidCode
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return domain.Napbox{}, domain.ErrInvalidLocation
	}
	if req.PortCount <= 0 || req.PortCount > maxPortCount {
		return domain.Napbox{}, domain.ErrInvalidPortCount
	}

	existing, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Napbox{}, err
	}
	if existing != nil {
		return domain.Napbox{}, domain.ErrCodeTaken
	}

	now := time.Now().UTC()
	box := domain.Napbox{
		ID:        s.genID.Generate(),
		Code:      code,
		Location:  location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		PortCount: req.PortCount,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &box); err != nil {
			return err
		}
		return s.repo.InsertPorts(ctx, tx, s.buildPorts(box.ID, 1, box.PortCount, now))
	})
	if err != nil {
		return domain.Napbox{}, err
	}

	return box, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateNapboxRequest) (domain.Napbox, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Napbox{}, err
	}

	box, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Napbox{}, err
	}
	if box == nil {
		return domain.Napbox{}, domain.ErrNotFound
	}

	if req.Location != nil {
		location := strings.TrimSpace(*req.Location)
		if location == "" {
			return domain.Napbox{}, domain.ErrInvalidLocation
		}
		box.Location = location
	}
	if req.Latitude != nil {
		box.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		box.Longitude = req.Longitude
	}
	if req.Notes != nil {
		box.Notes = strings.TrimSpace(*req.Notes)
	}

	oldPortCount := box.PortCount
	if req.PortCount != nil {
		if *req.PortCount <= 0 || *req.PortCount > maxPortCount {
			return domain.Napbox{}, domain.ErrInvalidPortCount
		}
		box.PortCount = *req.PortCount
	}

	now := time.Now().UTC()
	box.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if box.PortCount < oldPortCount {
			maxOccupied, err := s.repo.MaxOccupiedPort(ctx, tx, box.ID)
			if err != nil {
				return err
			}
			if maxOccupied > box.PortCount {
				return domain.ErrShrinkOccupied
			}
			if err := s.repo.DeletePortsAbove(ctx, tx, box.ID, box.PortCount); err != nil {
				return err
			}
		}
		if box.PortCount > oldPortCount {
			if err := s.repo.InsertPorts(ctx, tx, s.buildPorts(box.ID, oldPortCount+1, box.PortCount, now)); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, tx, box)
	})
	if err != nil {
		return domain.Napbox{}, err
	}

	return *box, nil
}

func (s *Service) List(ctx context.Context) (domain.ListNapboxResponse, error) {
	boxes, err := s.repo.ListWithOccupancy(ctx, s.db)
	if err != nil {
		return domain.ListNapboxResponse{}, err
	}
	return domain.ListNapboxResponse{Napboxes: boxes}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetNapboxRequest) (domain.NapboxDetail, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.NapboxDetail{}, err
	}

	box, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.NapboxDetail{}, err
	}
	if box == nil {
		return domain.NapboxDetail{}, domain.ErrNotFound
	}

	ports, err := s.repo.ListPorts(ctx, s.db, box.ID)
	if err != nil {
		return domain.NapboxDetail{}, err
	}

	return domain.NapboxDetail{Napbox: *box, Ports: ports}, nil
}

func (s *Service) buildPorts(napboxID snowflake.ID, from, to int, now time.Time) []domain.NapboxPort {
	ports := make([]domain.NapboxPort, 0, to-from+1)
	for number := from; number <= to; number++ {
		ports = append(ports, domain.NapboxPort{
			ID:         s.genID.Generate(),
			NapboxID:   napboxID,
			PortNumber: number,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return ports
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
