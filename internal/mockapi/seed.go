package mockapi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"mangalib/pkg/models"
)

const (
	SeedAdminUsername = "admin"
	SeedAdminEmail    = "admin@mangalib.local"
)

var seedBooks = []models.Book{
	{Title: "Dế Mèn Phiêu Lưu Ký", Author: "Tô Hoài", Description: "Cuộc phiêu lưu của chú dế mèn.", OriginalFilename: "de-men.pdf", TotalPages: 144, FileSize: 2_400_000},
	{Title: "Số Đỏ", Author: "Vũ Trọng Phụng", Description: "Tiểu thuyết trào phúng.", OriginalFilename: "so-do.pdf", TotalPages: 220, FileSize: 3_100_000},
	{Title: "Tắt Đèn", Author: "Ngô Tất Tố", OriginalFilename: "tat-den.pdf", TotalPages: 180, FileSize: 2_700_000},
	{Title: "One Piece Artbook", Author: "Eiichiro Oda", Description: "Color walk.", OriginalFilename: "op-artbook.pdf", TotalPages: 96, FileSize: 18_000_000},
}

// Seed creates the admin account and the sample books when missing.
// It is safe to run on every start.
func Seed(ctx context.Context, repo *Repo, adminPassword string, log zerolog.Logger) error {
	admin, err := repo.GetUserByUsername(ctx, SeedAdminUsername)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if admin == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		if _, err := repo.CreateUser(ctx, User{
			Username:     SeedAdminUsername,
			Email:        SeedAdminEmail,
			PasswordHash: string(hash),
			FullName:     "Administrator",
			Role:         models.RoleAdmin,
			IsActive:     true,
		}); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info().Str("username", SeedAdminUsername).Msg("seeded admin user")
	}

	counts, err := repo.Counts(ctx)
	if err != nil {
		return err
	}
	if counts["totalBooks"].(int) > 0 {
		return nil
	}
	for _, b := range seedBooks {
		b.UploadedBy = SeedAdminUsername
		if _, err := repo.CreateBook(ctx, b); err != nil {
			return fmt.Errorf("seed books: %w", err)
		}
	}
	log.Info().Int("books", len(seedBooks)).Msg("seeded books")
	return nil
}
