package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/utils"
)

// seedStaff creates the configured console account unless it exists.
func seedStaff(ctx context.Context, st store, cfg config.Config) error {
	email := strings.ToLower(strings.TrimSpace(cfg.StaffEmail))
	hash, err := utils.HashPassword(cfg.StaffPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := model.StaffUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleStaff,
		IsActive:     true,
	}
	err = st.CreateStaff(ctx, &u)
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err == nil {
		log.Printf("seed: staff account %s created", email)
	}
	return err
}

// seedEvents fills an empty in-memory calendar with the next two weeks of
// evenings so the wizard has something to book.
func seedEvents(ctx context.Context, st interface {
	CreateEvent(context.Context, *model.Event) error
}, now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 14; i++ {
		day := today.AddDate(0, 0, i)
		ev := model.Event{
			ID:        uuid.NewString(),
			Date:      day,
			DoorsOpen: "19:00",
			StartsAt:  "19:30",
			EndsAt:    "22:30",
			Type:      model.EventTypeRegular,
			Capacity:  120,
			IsActive:  true,
		}
		switch day.Weekday() {
		case time.Sunday:
			ev.Type, ev.DoorsOpen, ev.StartsAt, ev.EndsAt = model.EventTypeMatinee, "13:00", "13:30", "16:30"
		case time.Monday:
			continue
		case time.Wednesday:
			ev.Type, ev.Capacity = model.EventTypeCareProgram, 60
		}
		if err := st.CreateEvent(ctx, &ev); err != nil {
			log.Printf("seed: event %s: %v", day.Format(time.DateOnly), err)
		}
	}
}
