package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/xray"
	"smart-factory/internal/domain"
)

type RoleRepository struct{ client *Client }

func NewRoleRepository(client *Client) *RoleRepository {
	return &RoleRepository{client: client}
}

type roleRecord struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	ID          string `dynamodbav:"ID"`
	Name        string `dynamodbav:"Name"`
	DisplayName string `dynamodbav:"DisplayName"`
	Description string `dynamodbav:"Description"`
	IsSystem    bool   `dynamodbav:"IsSystem"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

type grantRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	RoleID       string `dynamodbav:"RoleID"`
	PermissionID string `dynamodbav:"PermissionID"`
}

func toRoleRecord(role domain.Role) roleRecord {
	return roleRecord{
		PK:          rolesPK,
		SK:          roleSK(role.ID),
		EntityType:  "ROLE",
		ID:          role.ID,
		Name:        string(role.Name),
		DisplayName: role.DisplayName,
		Description: role.Description,
		IsSystem:    role.IsSystem,
		CreatedAt:   formatTime(role.CreatedAt),
	}
}

func (r roleRecord) toDomain() domain.Role {
	return domain.Role{
		ID:          r.ID,
		Name:        domain.RoleName(r.Name),
		DisplayName: r.DisplayName,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryRoles", rolesPK, "ROLE#", true)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[roleRecord](items)
	if err != nil {
		return nil, err
	}
	rank := map[string]int{}
	for i, role := range domain.BuiltinRoles() {
		rank[role.ID] = i + 1
	}
	roles := make([]domain.Role, 0, len(records))
	for _, rec := range records {
		roles = append(roles, rec.toDomain())
	}
	sort.SliceStable(roles, func(i, j int) bool {
		ri, rj := rank[roles[i].ID], rank[roles[j].ID]
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return roles, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (domain.Role, error) {
	var rec roleRecord
	if err := r.client.getItem(ctx, "DynamoDB.GetRole", rolesPK, roleSK(roleID), &rec); err != nil {
		return domain.Role{}, err
	}
	return rec.toDomain(), nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name domain.RoleName) (domain.Role, error) {
	lock := struct {
		RoleID string `dynamodbav:"RoleID"`
	}{}
	if err := r.client.getItem(ctx, "DynamoDB.GetRoleName", roleNamePK(name), metaSK, &lock); err != nil {
		return domain.Role{}, err
	}
	return r.GetByID(ctx, lock.RoleID)
}

// Create writes the role together with a name lock item so two roles can
// never share a name.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	roleAV, err := attributevalue.MarshalMap(toRoleRecord(role))
	if err != nil {
		return err
	}
	lockAV, err := attributevalue.MarshalMap(map[string]any{
		"PK":         roleNamePK(role.Name),
		"SK":         metaSK,
		"EntityType": "ROLE_NAME",
		"RoleID":     role.ID,
	})
	if err != nil {
		return err
	}
	err = r.client.transact(ctx, "DynamoDB.PutRole", []awsv2types.TransactWriteItem{
		{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: roleAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
		{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: lockAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
	})
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: role %s already exists", domain.ErrConflict, role.Name)
	}
	return err
}

func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	return xray.Capture(ctx, "DynamoDB.UpdateRole", func(ctx context.Context) error {
		_, err := r.client.db.UpdateItem(ctx, &awsv2dynamodb.UpdateItemInput{
			TableName:        aws.String(r.client.tableName),
			Key:              key(rolesPK, roleSK(role.ID)),
			UpdateExpression: aws.String("SET DisplayName = :n, Description = :d"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":n": str(role.DisplayName),
				":d": str(role.Description),
			},
			ConditionExpression: aws.String("attribute_exists(PK)"),
		})
		if isConditionalCheckFailure(err) {
			return domain.ErrNotFound
		}
		return err
	})
}

func (r *RoleRepository) Delete(ctx context.Context, roleID string) error {
	role, err := r.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if err := r.SetGrants(ctx, roleID, nil); err != nil {
		return err
	}
	return r.client.transact(ctx, "DynamoDB.DeleteRole", []awsv2types.TransactWriteItem{
		{Delete: &awsv2types.Delete{TableName: aws.String(r.client.tableName), Key: key(rolesPK, roleSK(roleID))}},
		{Delete: &awsv2types.Delete{TableName: aws.String(r.client.tableName), Key: key(roleNamePK(role.Name), metaSK)}},
	})
}

func (r *RoleRepository) ListGrants(ctx context.Context) ([]domain.RolePermission, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryGrants", rolesPK, "GRANT#", true)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[grantRecord](items)
	if err != nil {
		return nil, err
	}
	grants := make([]domain.RolePermission, 0, len(records))
	for _, rec := range records {
		grants = append(grants, domain.RolePermission{RoleID: rec.RoleID, PermissionID: rec.PermissionID})
	}
	return grants, nil
}

// SetGrants deletes the role's current grant rows and writes the new set.
func (r *RoleRepository) SetGrants(ctx context.Context, roleID string, permissionIDs []string) error {
	existing, err := r.client.query(ctx, "DynamoDB.QueryRoleGrants", rolesPK, grantPrefix(roleID), true)
	if err != nil {
		return err
	}
	keys := make([]map[string]awsv2types.AttributeValue, 0, len(existing))
	for _, item := range existing {
		keys = append(keys, keyOf(item))
	}
	if err := r.client.batchDelete(ctx, "DynamoDB.DeleteGrants", keys); err != nil {
		return err
	}
	for _, permID := range permissionIDs {
		rec := grantRecord{PK: rolesPK, SK: grantSK(roleID, permID), EntityType: "GRANT", RoleID: roleID, PermissionID: permID}
		if err := r.client.putItem(ctx, "DynamoDB.PutGrant", rec, ""); err != nil {
			return err
		}
	}
	return nil
}
