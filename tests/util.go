package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
)

// NewEmailMock returns a silent, synchronous email service with the embedded templates loaded.
func NewEmailMock(conf *core.Config) *emailsvc.ConsoleServiceMock {
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(assets.FS, conf, logger)
	return emailsvc.NewConsoleServiceMock(conf, logger)
}

// LastOTPCode returns the code of the last verification email sent through mock.
func LastOTPCode(t *testing.T, mock *emailsvc.ConsoleServiceMock) string {
	t.Helper()
	msg, ok := mock.LastMessage()
	if !ok || msg.TemplateName != "otp_code" {
		t.Fatalf("LastOTPCode() no verification email sent")
	}
	data, _ := msg.TemplateData.(map[string]interface{})
	code, _ := data["Code"].(string)
	if code == "" {
		t.Fatalf("LastOTPCode() email has no code")
	}
	return code
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateProfile(t *testing.T, repo profile.Repository, userID string, role profile.Role) profile.Profile {
	t.Helper()
	now := time.Now().UTC()
	prof, err := repo.GetOrCreate(context.Background(), profile.Profile{
		ID:        core.NewID(),
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	return prof
}

func EnableTwoFactor(t *testing.T, repo settings.Repository, profileID string) {
	t.Helper()
	enabled := true
	if _, err := repo.Upsert(context.Background(), profileID, settings.Update{TwoFactorEnabled: &enabled}, time.Now()); err != nil {
		t.Fatalf("enableTwoFactor() failed: %v", err)
	}
}

func CreateClass(t *testing.T, repo schedule.Store, title string, slot schedule.Slot) schedule.Class {
	t.Helper()
	c, err := repo.Create(context.Background(), schedule.Class{Title: title, Slot: slot})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return c
}
