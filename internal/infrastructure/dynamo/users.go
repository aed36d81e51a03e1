package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-auth-api/internal/domain"
)

// phoneClaim reserves a phone number for its live owner.
// PK: phone_number.
type phoneClaim struct {
	PhoneNumber string `dynamodbav:"phone_number"`
	UserID      string `dynamodbav:"user_id"`
}

// findUser returns the raw user item, soft-deleted or not, or nil.
func (s *Store) findUser(ctx context.Context, userID string) (*domain.User, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Users),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *Store) findClaim(ctx context.Context, phone string) (*phoneClaim, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.PhoneNumbers),
		Key:            strKey(fieldPhoneNumber, phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get phone claim: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var c phoneClaim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal phone claim: %w", err)
	}
	return &c, nil
}

func (s *Store) GetUser(ctx context.Context, userID string, includeDeleted bool) (*domain.User, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || (u.IsDeleted && !includeDeleted) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return u, nil
}

// GetUserByPhone resolves live users through the claim table. Soft-deleted
// rows are only reachable through the phone number index, which is eventually
// consistent.
func (s *Store) GetUserByPhone(ctx context.Context, phone string, includeDeleted bool) (*domain.User, error) {
	claim, err := s.findClaim(ctx, phone)
	if err != nil {
		return nil, err
	}
	if claim != nil {
		u, err := s.findUser(ctx, claim.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil && !u.IsDeleted {
			return u, nil
		}
	}
	if !includeDeleted {
		return nil, fmt.Errorf("user with phone: %w", domain.ErrNotFound)
	}

	var users []domain.User
	p := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Users),
		IndexName:                 aws.String(indexPhoneNumber),
		KeyConditionExpression:    aws.String("#p = :p"),
		ExpressionAttributeNames:  map[string]string{"#p": fieldPhoneNumber},
		ExpressionAttributeValues: map[string]types.AttributeValue{":p": strVal(phone)},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query users by phone: %w", err)
		}
		var batch []domain.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		users = append(users, batch...)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user with phone: %w", domain.ErrNotFound)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return &users[0], nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	claim, err := attributevalue.MarshalMap(phoneClaim{PhoneNumber: u.PhoneNumber, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal phone claim: %w", err)
	}
	if err := s.w.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.PhoneNumbers,
		key:   strKey(fieldPhoneNumber, u.PhoneNumber),
		item:  claim,
		cond:  attrNotExists(fieldPhoneNumber),
	}); err != nil {
		return err
	}
	return s.w.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.Users,
		key:   strKey(fieldUserID, u.UserID),
		item:  item,
		cond:  attrNotExists(fieldUserID),
	})
}

// DeleteUnverifiedByPhone removes the claim holder when it is unverified,
// together with its claim and tokens. A claim pointing at a missing user is
// released as well.
func (s *Store) DeleteUnverifiedByPhone(ctx context.Context, phone string) (int, error) {
	claim, err := s.findClaim(ctx, phone)
	if err != nil || claim == nil {
		return 0, err
	}
	u, err := s.findUser(ctx, claim.UserID)
	if err != nil {
		return 0, err
	}
	if u != nil && (u.PhoneIsVerified || u.IsDeleted) {
		return 0, nil
	}
	releaseClaim := &op{
		kind:  opDelete,
		table: s.tables.PhoneNumbers,
		key:   strKey(fieldPhoneNumber, phone),
		cond:  attrEquals(map[string]types.AttributeValue{fieldUserID: strVal(claim.UserID)}),
	}
	if u == nil {
		return 0, s.w.apply(ctx, releaseClaim)
	}

	tokens, err := s.otpKinds(ctx, u.UserID)
	if err != nil {
		return 0, err
	}
	if err := s.w.apply(ctx, &op{
		kind:  opDelete,
		table: s.tables.Users,
		key:   strKey(fieldUserID, u.UserID),
		cond: attrEquals(map[string]types.AttributeValue{
			fieldPhoneIsVerified: boolVal(false),
			fieldIsDeleted:       boolVal(false),
		}),
	}); err != nil {
		return 0, err
	}
	if err := s.w.apply(ctx, releaseClaim); err != nil {
		return 0, err
	}
	for _, kind := range tokens {
		if err := s.w.apply(ctx, s.deleteOTPOp(u.UserID, kind, nil)); err != nil {
			return 0, err
		}
	}
	return 1, nil
}

func (s *Store) MarkPhoneVerified(ctx context.Context, userID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldPhoneIsVerified: true,
		fieldUpdatedAt:       s.now(),
	})
	if err != nil {
		return err
	}
	return s.w.apply(ctx, &op{
		kind:    opUpdate,
		table:   s.tables.Users,
		key:     strKey(fieldUserID, userID),
		update:  ue,
		cond:    attrEquals(map[string]types.AttributeValue{fieldIsDeleted: boolVal(false)}),
		condErr: fmt.Errorf("user %s: %w", userID, domain.ErrNotFound),
	})
}

// SoftDeleteUser flags the user and releases its phone claim.
func (s *Store) SoftDeleteUser(ctx context.Context, userID string) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.IsDeleted {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldIsDeleted: true,
		fieldUpdatedAt: s.now(),
	})
	if err != nil {
		return err
	}
	if err := s.w.apply(ctx, &op{
		kind:    opUpdate,
		table:   s.tables.Users,
		key:     strKey(fieldUserID, userID),
		update:  ue,
		cond:    attrEquals(map[string]types.AttributeValue{fieldIsDeleted: boolVal(false)}),
		condErr: fmt.Errorf("user %s: %w", userID, domain.ErrNotFound),
	}); err != nil {
		return err
	}
	return s.w.apply(ctx, &op{
		kind:  opDelete,
		table: s.tables.PhoneNumbers,
		key:   strKey(fieldPhoneNumber, u.PhoneNumber),
		cond:  attrEquals(map[string]types.AttributeValue{fieldUserID: strVal(userID)}),
	})
}
