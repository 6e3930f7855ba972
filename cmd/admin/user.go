package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"jobgenie/internal/auth"
	"jobgenie/internal/database"
	"jobgenie/internal/quota"
)

var createUserEmail string

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account with a one-time random password",
	RunE:  runCreateUser,
}

func init() {
	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "账号邮箱（必填）")
	_ = createUserCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(createUserCmd)
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	email := strings.ToLower(strings.TrimSpace(createUserEmail))
	if email == "" {
		return errors.New("missing required flag: --email")
	}

	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user := database.User{Email: email, PasswordHash: hashed}
	err = db.WithContext(cmd.Context()).Transaction(func(tx *gorm.DB) error {
		var existing database.User
		switch err := tx.Where("email = ?", email).Take(&existing).Error; {
		case err == nil:
			return fmt.Errorf("user %q already exists", email)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("query user: %w", err)
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Create(&database.Profile{UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return tx.Create(&database.Subscription{UserID: user.ID, Plan: quota.PlanFree, Status: "active"}).Error
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "已创建账号：\n")
	fmt.Fprintf(out, "用户 ID: %d\n", user.ID)
	fmt.Fprintf(out, "邮箱: %s\n", email)
	fmt.Fprintf(out, "初始密码: %s\n", password)
	fmt.Fprintf(out, "提示：该密码仅显示一次。\n")
	return nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
