package dynamodb

import (
	"context"
	"fmt"
	"sort"

	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"smart-factory/internal/domain"
)

type DeviceRepository struct{ client *Client }

func NewDeviceRepository(client *Client) *DeviceRepository {
	return &DeviceRepository{client: client}
}

type deviceRecord struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	EntityType string         `dynamodbav:"EntityType"`
	ID         string         `dynamodbav:"ID"`
	Name       string         `dynamodbav:"Name"`
	Type       string         `dynamodbav:"Type"`
	Zone       string         `dynamodbav:"Zone"`
	Status     string         `dynamodbav:"Status"`
	IPAddress  string         `dynamodbav:"IPAddress,omitempty"`
	Firmware   string         `dynamodbav:"Firmware,omitempty"`
	LastSeen   string         `dynamodbav:"LastSeen"`
	Metadata   map[string]any `dynamodbav:"Metadata"`
	CreatedAt  string         `dynamodbav:"CreatedAt"`
	UpdatedAt  string         `dynamodbav:"UpdatedAt"`
}

type commandRecord struct {
	PK          string         `dynamodbav:"PK"`
	SK          string         `dynamodbav:"SK"`
	EntityType  string         `dynamodbav:"EntityType"`
	ID          string         `dynamodbav:"ID"`
	DeviceID    string         `dynamodbav:"DeviceID"`
	Command     string         `dynamodbav:"Command"`
	Params      map[string]any `dynamodbav:"Params"`
	Status      string         `dynamodbav:"Status"`
	SentBy      string         `dynamodbav:"SentBy"`
	CreatedAt   string         `dynamodbav:"CreatedAt"`
	RespondedAt string         `dynamodbav:"RespondedAt,omitempty"`
}

func toDeviceRecord(d domain.Device) deviceRecord {
	return deviceRecord{
		PK:         devicesPK,
		SK:         deviceSK(d.ID),
		EntityType: "DEVICE",
		ID:         d.ID,
		Name:       d.Name,
		Type:       string(d.Type),
		Zone:       d.Zone,
		Status:     string(d.Status),
		IPAddress:  d.IPAddress,
		Firmware:   d.Firmware,
		LastSeen:   formatTime(d.LastSeen),
		Metadata:   d.Metadata,
		CreatedAt:  formatTime(d.CreatedAt),
		UpdatedAt:  formatTime(d.UpdatedAt),
	}
}

func (r deviceRecord) toDomain() domain.Device {
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return domain.Device{
		ID:        r.ID,
		Name:      r.Name,
		Type:      domain.DeviceType(r.Type),
		Zone:      r.Zone,
		Status:    domain.DeviceStatus(r.Status),
		IPAddress: r.IPAddress,
		Firmware:  r.Firmware,
		LastSeen:  parseTime(r.LastSeen),
		Metadata:  metadata,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

func (r *DeviceRepository) List(ctx context.Context, filter domain.DeviceFilter) ([]domain.Device, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryDevices", devicesPK, "DEVICE#", true)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[deviceRecord](items)
	if err != nil {
		return nil, err
	}
	devices := []domain.Device{}
	for _, rec := range records {
		if d := rec.toDomain(); filter.Match(d) {
			devices = append(devices, d)
		}
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Zone != devices[j].Zone {
			return devices[i].Zone < devices[j].Zone
		}
		return devices[i].Name < devices[j].Name
	})
	return devices, nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (domain.Device, error) {
	var rec deviceRecord
	if err := r.client.getItem(ctx, "DynamoDB.GetDevice", devicesPK, deviceSK(deviceID), &rec); err != nil {
		return domain.Device{}, err
	}
	return rec.toDomain(), nil
}

func (r *DeviceRepository) Create(ctx context.Context, device domain.Device) error {
	err := r.client.putItem(ctx, "DynamoDB.PutDevice", toDeviceRecord(device), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: device %s already exists", domain.ErrConflict, device.ID)
	}
	return err
}

func (r *DeviceRepository) Update(ctx context.Context, device domain.Device) error {
	err := r.client.putItem(ctx, "DynamoDB.UpdateDevice", toDeviceRecord(device), "attribute_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrNotFound
	}
	return err
}

// Delete removes the device and then its command history.
func (r *DeviceRepository) Delete(ctx context.Context, deviceID string) error {
	if err := r.client.deleteItem(ctx, "DynamoDB.DeleteDevice", devicesPK, deviceSK(deviceID)); err != nil {
		return err
	}
	history, err := r.client.query(ctx, "DynamoDB.QueryCommands", commandPK(deviceID), "CMD#", true)
	if err != nil {
		return err
	}
	keys := make([]map[string]awsv2types.AttributeValue, 0, len(history))
	for _, item := range history {
		keys = append(keys, keyOf(item))
	}
	return r.client.batchDelete(ctx, "DynamoDB.DeleteCommands", keys)
}

func (r *DeviceRepository) AppendCommand(ctx context.Context, cmd domain.DeviceCommand) error {
	rec := commandRecord{
		PK:          commandPK(cmd.DeviceID),
		SK:          commandSK(cmd.CreatedAt, cmd.ID),
		EntityType:  "DEVICE_COMMAND",
		ID:          cmd.ID,
		DeviceID:    cmd.DeviceID,
		Command:     cmd.Command,
		Params:      cmd.Params,
		Status:      string(cmd.Status),
		SentBy:      cmd.SentBy,
		CreatedAt:   formatTime(cmd.CreatedAt),
		RespondedAt: formatTimePtr(cmd.RespondedAt),
	}
	return r.client.putItem(ctx, "DynamoDB.PutCommand", rec, "attribute_not_exists(PK)")
}

func (r *DeviceRepository) ListCommands(ctx context.Context, deviceID string) ([]domain.DeviceCommand, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryCommands", commandPK(deviceID), "CMD#", false)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[commandRecord](items)
	if err != nil {
		return nil, err
	}
	cmds := make([]domain.DeviceCommand, 0, len(records))
	for _, rec := range records {
		params := rec.Params
		if params == nil {
			params = map[string]any{}
		}
		cmds = append(cmds, domain.DeviceCommand{
			ID:          rec.ID,
			DeviceID:    rec.DeviceID,
			Command:     rec.Command,
			Params:      params,
			Status:      domain.CommandStatus(rec.Status),
			SentBy:      rec.SentBy,
			CreatedAt:   parseTime(rec.CreatedAt),
			RespondedAt: parseTimePtr(rec.RespondedAt),
		})
	}
	return cmds, nil
}
