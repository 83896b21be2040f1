package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
	"github.com/cultusedu/cultus/core/progression"
	"github.com/cultusedu/cultus/core/user"
)

// NewConfig returns a minimal app config for tests; nothing is read from the
// environment.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "test",
		AppName:          "Cultus",
		SecretKey:        "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^*b8duxreo",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "noreply@test.cultus.local",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		JobReadiness: core.JobReadinessConfig{
			SilverMinScore: 60,
			GoldMinScore:   85,
		},
	}
}

// Logger forwards app logs to the test log so failures carry context.
type Logger struct {
	T *testing.T
}

var _ core.Logger = (*Logger)(nil)

func (l Logger) log(msg string, args []interface{}) {
	l.T.Helper()
	l.T.Log(append([]interface{}{msg}, args...)...)
}

func (l Logger) Debug(msg string, args ...interface{}) { l.log(msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.log(msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.log(msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.log(msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) {
	l.T.Helper()
	l.log(msg, args)
	l.T.FailNow()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProduct(t *testing.T, repo product.Repository, name string) product.Product {
	t.Helper()

	now := time.Now().UTC()
	active := true
	prod, err := repo.CreateProduct(context.Background(), product.Product{
		Name:      name,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateProduct() failed: %v", err)
	}
	return prod
}

func CreateModule(t *testing.T, repo product.Repository, productID, name string, typ product.ModuleType, seq int) product.Module {
	t.Helper()

	now := time.Now().UTC()
	mod, err := repo.CreateModule(context.Background(), product.Module{
		ProductID: productID,
		Name:      name,
		Type:      typ,
		Sequence:  seq,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

func Enroll(t *testing.T, svc *progression.Service, studentID, productID string) progression.State {
	t.Helper()

	st, err := svc.Enroll(context.Background(), studentID, productID, "")
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return st
}
