package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"smart-factory/internal/domain"
)

type UserRepository struct{ client *Client }

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

type userRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	ID           string `dynamodbav:"ID"`
	Email        string `dynamodbav:"Email"`
	Name         string `dynamodbav:"Name"`
	RoleID       string `dynamodbav:"RoleID"`
	IsActive     bool   `dynamodbav:"IsActive"`
	LastActiveAt string `dynamodbav:"LastActiveAt,omitempty"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

func toUserRecord(u domain.User) userRecord {
	return userRecord{
		PK:           usersPK,
		SK:           userSK(u.ID),
		EntityType:   "USER",
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		RoleID:       u.RoleID,
		IsActive:     u.IsActive,
		LastActiveAt: formatTime(u.LastActiveAt),
		CreatedAt:    formatTime(u.CreatedAt),
		UpdatedAt:    formatTime(u.UpdatedAt),
	}
}

func (r userRecord) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		RoleID:       r.RoleID,
		IsActive:     r.IsActive,
		LastActiveAt: parseTime(r.LastActiveAt),
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

func (r *UserRepository) emailLock(email, userID string) (map[string]awsv2types.AttributeValue, error) {
	return attributevalue.MarshalMap(map[string]any{
		"PK":         emailPK(email),
		"SK":         metaSK,
		"EntityType": "USER_EMAIL",
		"UserID":     userID,
	})
}

func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryUsers", usersPK, "USER#", true)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[userRecord](items)
	if err != nil {
		return nil, err
	}
	users := []domain.User{}
	for _, rec := range records {
		if u := rec.toDomain(); filter.Match(u) {
			users = append(users, u)
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (domain.User, error) {
	var rec userRecord
	if err := r.client.getItem(ctx, "DynamoDB.GetUser", usersPK, userSK(userID), &rec); err != nil {
		return domain.User{}, err
	}
	return rec.toDomain(), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	lock := struct {
		UserID string `dynamodbav:"UserID"`
	}{}
	if err := r.client.getItem(ctx, "DynamoDB.GetUserEmail", emailPK(email), metaSK, &lock); err != nil {
		return domain.User{}, err
	}
	return r.GetByID(ctx, lock.UserID)
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	userAV, err := attributevalue.MarshalMap(toUserRecord(user))
	if err != nil {
		return err
	}
	lockAV, err := r.emailLock(user.Email, user.ID)
	if err != nil {
		return err
	}
	err = r.client.transact(ctx, "DynamoDB.PutUser", []awsv2types.TransactWriteItem{
		{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: userAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
		{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: lockAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
	})
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: user %s already exists", domain.ErrConflict, user.Email)
	}
	return err
}

// Update rewrites the user item and moves the email lock when the address
// changes.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	current, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	userAV, err := attributevalue.MarshalMap(toUserRecord(user))
	if err != nil {
		return err
	}
	items := []awsv2types.TransactWriteItem{
		{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: userAV, ConditionExpression: aws.String("attribute_exists(PK)")}},
	}
	if current.Email != user.Email {
		lockAV, err := r.emailLock(user.Email, user.ID)
		if err != nil {
			return err
		}
		items = append(items,
			awsv2types.TransactWriteItem{Put: &awsv2types.Put{TableName: aws.String(r.client.tableName), Item: lockAV, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
			awsv2types.TransactWriteItem{Delete: &awsv2types.Delete{TableName: aws.String(r.client.tableName), Key: key(emailPK(current.Email), metaSK)}},
		)
	}
	err = r.client.transact(ctx, "DynamoDB.UpdateUser", items)
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, user.Email)
	}
	return err
}
