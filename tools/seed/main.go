// Command seed provisions the admin account and a starter catalog. It is
// idempotent: reruns refresh the admin credentials and skip offerings and
// tips that already exist.
package main

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/naildiary/booking/internal/apperr"
	"github.com/naildiary/booking/internal/model"
	"github.com/naildiary/booking/internal/storage"
	"github.com/naildiary/booking/libs/config"
	"github.com/naildiary/booking/libs/db"
	"github.com/naildiary/booking/libs/runtime"
)

var offerings = []model.Offering{
	{Name: "Manicure", Description: "Classic manicure with polish", DurationMinutes: 45, Price: 35, Icon: "nail", Active: true},
	{Name: "Pedicure", Description: "Full pedicure with foot massage", DurationMinutes: 60, Price: 40, Icon: "foot", Active: true},
	{Name: "Gel Set", Description: "Full gel application", DurationMinutes: 120, Price: 120, Icon: "sparkle", Active: true},
	{Name: "Nail Art Course", Description: "Hands-on nail art training, spread over multiple sessions", DurationMinutes: 1680, Price: 450, Icon: "brush", Active: true},
}

var starterTips = []model.Tip{
	{Title: "Hydration", Content: "Apply cuticle oil daily to keep nails from becoming brittle.", Active: true},
	{Title: "Gel aftercare", Content: "Avoid hot water for the first two hours after a gel application.", Active: true},
}

func main() {
	logger := runtime.NewLogger("seed")
	ctx, stop := runtime.SignalContext()
	defer stop()

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	adminEmail, err := config.RequiredString("ADMIN_EMAIL")
	if err != nil {
		panic(err)
	}
	adminPassword, err := config.RequiredString("ADMIN_PASSWORD")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, 2)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	users := storage.NewUserRepository(pool)
	if err := users.Upsert(ctx, &model.User{
		ID:           uuid.NewString(),
		Name:         config.String("ADMIN_NAME", "Admin"),
		Email:        strings.ToLower(adminEmail),
		PasswordHash: string(hash),
		Role:         "admin",
	}); err != nil {
		logger.Error("seed admin failed", "err", err)
		panic(err)
	}
	logger.Info("admin account ready", "email", strings.ToLower(adminEmail))

	offeringRepo := storage.NewOfferingRepository(pool)
	for _, o := range offerings {
		if _, err := offeringRepo.GetByName(ctx, o.Name); err == nil {
			continue
		} else if !apperr.IsKind(err, apperr.KindNotFound) {
			logger.Error("seed offering lookup failed", "name", o.Name, "err", err)
			panic(err)
		}
		o.ID = uuid.NewString()
		if err := offeringRepo.Insert(ctx, &o); err != nil {
			logger.Error("seed offering failed", "name", o.Name, "err", err)
			panic(err)
		}
		logger.Info("offering seeded", "name", o.Name)
	}

	tipRepo := storage.NewTipRepository(pool)
	existing, err := tipRepo.List(ctx, false)
	if err != nil {
		logger.Error("seed tip lookup failed", "err", err)
		panic(err)
	}
	have := map[string]bool{}
	for _, t := range existing {
		have[t.Title] = true
	}
	for _, t := range starterTips {
		if have[t.Title] {
			continue
		}
		t.ID = uuid.NewString()
		if err := tipRepo.Insert(ctx, &t); err != nil {
			logger.Error("seed tip failed", "title", t.Title, "err", err)
			panic(err)
		}
		logger.Info("tip seeded", "title", t.Title)
	}

	logger.Info("seed complete")
}
