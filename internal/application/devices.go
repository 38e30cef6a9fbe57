package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

type DeviceService struct {
	repo   ports.DeviceRepository
	authz  *AuthorizationService
	audit  *AuditService
	logger ports.Logger
	now    func() time.Time
}

func NewDeviceService(repo ports.DeviceRepository, authz *AuthorizationService, audit *AuditService, logger ports.Logger) *DeviceService {
	return &DeviceService{repo: repo, authz: authz, audit: audit, logger: logger, now: utcNow}
}

func (s *DeviceService) List(ctx context.Context, actor domain.Actor, filter domain.DeviceFilter, page, pageSize int) (domain.Page[domain.Device], error) {
	if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionView); err != nil {
		return domain.Page[domain.Device]{}, err
	}
	devices, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Device]{}, err
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	return domain.Paginate(devices, page, pageSize), nil
}

func (s *DeviceService) Get(ctx context.Context, actor domain.Actor, deviceID string) (domain.Device, error) {
	if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionView); err != nil {
		return domain.Device{}, err
	}
	if deviceID == "" {
		return domain.Device{}, domain.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, deviceID)
}

func (s *DeviceService) StatusCounts(ctx context.Context, actor domain.Actor) (map[domain.DeviceStatus]int, error) {
	if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionView); err != nil {
		return nil, err
	}
	devices, err := s.repo.List(ctx, domain.DeviceFilter{})
	if err != nil {
		return nil, err
	}
	return domain.StatusCounts(devices), nil
}

func (s *DeviceService) Create(ctx context.Context, actor domain.Actor, device domain.Device) (domain.Device, error) {
	created, err := func() (domain.Device, error) {
		if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionCreate); err != nil {
			return domain.Device{}, err
		}
		device.Name = strings.TrimSpace(device.Name)
		device.Zone = strings.TrimSpace(device.Zone)
		if device.Status == "" {
			device.Status = domain.DeviceOffline
		}
		if err := device.Validate(); err != nil {
			return domain.Device{}, err
		}
		now := s.now()
		device.ID = ids.New(ids.PrefixDevice)
		device.CreatedAt = now
		device.UpdatedAt = now
		device.LastSeen = now
		if device.Metadata == nil {
			device.Metadata = map[string]any{}
		}
		if err := s.repo.Create(ctx, device); err != nil {
			return domain.Device{}, err
		}
		return device, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditCreate,
		Resource:   domain.ResourceDevice,
		ResourceID: created.ID,
		Details:    map[string]any{"name": device.Name, "type": device.Type},
	}, err)
	return created, err
}

func (s *DeviceService) Update(ctx context.Context, actor domain.Actor, deviceID string, upd domain.DeviceUpdate) (domain.Device, error) {
	updated, err := func() (domain.Device, error) {
		if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionUpdate); err != nil {
			return domain.Device{}, err
		}
		if deviceID == "" {
			return domain.Device{}, domain.ErrInvalidInput
		}
		current, err := s.repo.GetByID(ctx, deviceID)
		if err != nil {
			return domain.Device{}, err
		}
		next := current.Apply(upd)
		if err := next.Validate(); err != nil {
			return domain.Device{}, err
		}
		next.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, next); err != nil {
			return domain.Device{}, err
		}
		return next, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditUpdate, Resource: domain.ResourceDevice, ResourceID: deviceID}, err)
	return updated, err
}

func (s *DeviceService) Delete(ctx context.Context, actor domain.Actor, deviceID string) error {
	err := func() error {
		if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionDelete); err != nil {
			return err
		}
		if deviceID == "" {
			return domain.ErrInvalidInput
		}
		return s.repo.Delete(ctx, deviceID)
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditDelete, Resource: domain.ResourceDevice, ResourceID: deviceID}, err)
	return err
}

// SendCommand records the command and applies its status side effect. No
// command reaches real hardware; it is acknowledged immediately.
func (s *DeviceService) SendCommand(ctx context.Context, actor domain.Actor, deviceID, command string, params map[string]any) (domain.DeviceCommand, error) {
	command = strings.TrimSpace(command)
	cmd, err := func() (domain.DeviceCommand, error) {
		if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionControl); err != nil {
			return domain.DeviceCommand{}, err
		}
		if deviceID == "" || command == "" {
			return domain.DeviceCommand{}, fmt.Errorf("%w: device id and command are required", domain.ErrInvalidInput)
		}
		device, err := s.repo.GetByID(ctx, deviceID)
		if err != nil {
			return domain.DeviceCommand{}, err
		}
		now := s.now()
		if params == nil {
			params = map[string]any{}
		}
		cmd := domain.DeviceCommand{
			ID:          ids.New(ids.PrefixCommand),
			DeviceID:    device.ID,
			Command:     command,
			Params:      params,
			Status:      domain.CommandAcknowledged,
			SentBy:      actor.UserID,
			CreatedAt:   now,
			RespondedAt: &now,
		}
		if err := s.repo.AppendCommand(ctx, cmd); err != nil {
			return domain.DeviceCommand{}, err
		}
		if err := s.repo.Update(ctx, device.ApplyCommand(command, now)); err != nil {
			return domain.DeviceCommand{}, err
		}
		return cmd, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditControl,
		Resource:   domain.ResourceDevice,
		ResourceID: deviceID,
		Details:    map[string]any{"command": command},
	}, err)
	return cmd, err
}

func (s *DeviceService) Commands(ctx context.Context, actor domain.Actor, deviceID string) ([]domain.DeviceCommand, error) {
	if err := s.authz.Require(actor, domain.ResourceDevice, domain.ActionView); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.repo.ListCommands(ctx, deviceID)
}
