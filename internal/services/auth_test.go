package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/types"
)

type fakeUserRepo struct {
	repos.UserRepo

	byID    map[uuid.UUID]*types.User
	byEmail map[string]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[uuid.UUID]*types.User{},
		byEmail: map[string]*types.User{},
	}
}

func (f *fakeUserRepo) add(u *types.User) {
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		f.add(u)
	}
	return users, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

type fakeUserTokenRepo struct {
	repos.UserTokenRepo

	byAccess map[string]*types.UserToken
}

func newFakeUserTokenRepo() *fakeUserTokenRepo {
	return &fakeUserTokenRepo{byAccess: map[string]*types.UserToken{}}
}

func (f *fakeUserTokenRepo) Create(ctx context.Context, tx *gorm.DB, tokens []*types.UserToken) ([]*types.UserToken, error) {
	for _, token := range tokens {
		if token.ID == uuid.Nil {
			token.ID = uuid.New()
		}
		f.byAccess[token.AccessToken] = token
	}
	return tokens, nil
}

func (f *fakeUserTokenRepo) GetByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) (*types.UserToken, error) {
	token, ok := f.byAccess[accessToken]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return token, nil
}

func (f *fakeUserTokenRepo) DeleteByAccessToken(ctx context.Context, tx *gorm.DB, accessToken string) error {
	delete(f.byAccess, accessToken)
	return nil
}

func newAuthService(t *testing.T, users *fakeUserRepo, tokens *fakeUserTokenRepo) AuthService {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc, err := NewAuthService(log, nil, users, tokens)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if _, err := NewAuthService(log, nil, newFakeUserRepo(), newFakeUserTokenRepo()); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	users := newFakeUserRepo()
	svc := newAuthService(t, users, newFakeUserTokenRepo())

	created, err := svc.CreateUser(context.Background(), nil, &types.User{
		Email:     "user@example.co.nz",
		FirstName: "Mere",
	}, "correct horse battery")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.Password == "correct horse battery" {
		t.Fatalf("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("correct horse battery")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	if _, err := svc.CreateUser(context.Background(), nil, &types.User{
		Email: "user@example.co.nz",
	}, "another"); err == nil {
		t.Fatalf("expected duplicate email to be rejected")
	}
}

func TestIssueTokensAndSetContextRoundtrip(t *testing.T) {
	users := newFakeUserRepo()
	tokens := newFakeUserTokenRepo()
	svc := newAuthService(t, users, tokens)

	partnerID := uuid.New()
	user := &types.User{
		ID:        uuid.New(),
		Email:     "partner@example.co.nz",
		PartnerID: &partnerID,
	}
	users.add(user)

	issued, err := svc.IssueTokens(context.Background(), nil, user)
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}
	if issued.AccessToken == "" || issued.RefreshToken == "" {
		t.Fatalf("expected signed tokens, got %+v", issued)
	}
	if !issued.ExpiresAt.After(time.Now()) {
		t.Fatalf("access token already expired: %v", issued.ExpiresAt)
	}

	ctx, err := svc.SetContextFromToken(context.Background(), issued.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		t.Fatalf("request data missing from context")
	}
	if rd.UserID != user.ID {
		t.Fatalf("user id: want=%s got=%s", user.ID, rd.UserID)
	}
	if rd.PartnerID != partnerID {
		t.Fatalf("partner id: want=%s got=%s", partnerID, rd.PartnerID)
	}
	if rd.IsStaff {
		t.Fatalf("expected non-staff user")
	}
}

func TestSetContextRejectsBadTokens(t *testing.T) {
	users := newFakeUserRepo()
	tokens := newFakeUserTokenRepo()
	svc := newAuthService(t, users, tokens)
	ctx := context.Background()

	if _, err := svc.SetContextFromToken(ctx, "not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("garbage token: want ErrInvalidToken, got %v", err)
	}

	user := &types.User{ID: uuid.New(), Email: "u@example.co.nz"}
	users.add(user)
	issued, err := svc.IssueTokens(ctx, nil, user)
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}

	// A valid signature is not enough once the stored row has expired.
	issued.ExpiresAt = time.Now().Add(-time.Minute)
	if _, err := svc.SetContextFromToken(ctx, issued.AccessToken); err != ErrInvalidToken {
		t.Fatalf("expired token: want ErrInvalidToken, got %v", err)
	}
	if _, ok := tokens.byAccess[issued.AccessToken]; ok {
		t.Fatalf("expected expired token row to be deleted")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newFakeUserRepo()
	svc := newAuthService(t, users, newFakeUserTokenRepo())
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "nobody@example.co.nz", "pw"); err != ErrInvalidCredentials {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("right password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users.add(&types.User{ID: uuid.New(), Email: "u@example.co.nz", Password: string(hashed)})

	if _, _, err := svc.Login(ctx, "u@example.co.nz", "wrong password"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}
