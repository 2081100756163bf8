package main

import (
	"fmt"
	"log"

	"servicehub/internal/config"
	"servicehub/internal/database"
	"servicehub/internal/domain"
	jwtsvc "servicehub/internal/pkg/jwt"
)

type seedProvider struct {
	userID   string
	name     string
	category string
	price    float64
	rating   float64
	ratings  int64
	days     []int
	start    string
	end      string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	// children first so foreign keys hold
	log.Println("Cleaning old data...")
	for _, table := range []string{"payments", "service_requests", "availabilities", "service_providers", "categories"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("clean %s: %v", table, err)
		}
	}

	// ================== CATEGORIES ==================
	log.Println("Creating categories...")
	categories := map[string]*domain.Category{}
	for _, c := range []domain.Category{
		{Name: "Cleaning", Description: "Home and office cleaning", Icon: "broom"},
		{Name: "Plumbing", Description: "Leaks, pipes and fixtures", Icon: "wrench"},
		{Name: "Nails", Description: "Manicure and pedicure at home", Icon: "sparkles"},
	} {
		c := c
		if err := db.Create(&c).Error; err != nil {
			log.Fatalf("create category %s: %v", c.Name, err)
		}
		categories[c.Name] = &c
	}

	// ================== PROVIDERS ==================
	log.Println("Creating providers...")
	weekdays := []int{1, 2, 3, 4, 5}
	everyDay := []int{0, 1, 2, 3, 4, 5, 6}
	seeds := []seedProvider{
		{userID: "provider-1", name: "Sparkle Cleaners", category: "Cleaning", price: 45, rating: 4.8, ratings: 25, days: weekdays, start: "09:00", end: "17:00"},
		{userID: "provider-2", name: "Fresh Start", category: "Cleaning", price: 40, rating: 4.2, ratings: 11, days: everyDay, start: "08:00", end: "20:00"},
		{userID: "provider-3", name: "Pipe Pros", category: "Plumbing", price: 80, rating: 4.5, ratings: 40, days: weekdays, start: "07:00", end: "15:00"},
		{userID: "provider-4", name: "Polished", category: "Nails", price: 35, days: everyDay, start: "10:00", end: "18:00"},
	}

	for _, s := range seeds {
		p := domain.ServiceProvider{
			UserID:       s.userID,
			CategoryID:   categories[s.category].ID,
			Status:       domain.ProviderApproved,
			BusinessName: s.name,
			Price:        s.price,
			Rating:       s.rating,
			TotalRatings: s.ratings,
		}
		if err := db.Create(&p).Error; err != nil {
			log.Fatalf("create provider %s: %v", s.name, err)
		}

		for _, day := range s.days {
			a := domain.Availability{
				ProviderID:   p.ID,
				DayOfWeek:    day,
				StartTime:    s.start,
				EndTime:      s.end,
				SlotDuration: 60,
				IsAvailable:  true,
			}
			if err := db.Create(&a).Error; err != nil {
				log.Fatalf("create availability for %s: %v", s.name, err)
			}
		}
		log.Printf("Provider created: %s (%s) user=%s", s.name, s.category, s.userID)
	}

	// A pending application for the admin review queue.
	pending := domain.ServiceProvider{
		UserID:       "provider-5",
		CategoryID:   categories["Plumbing"].ID,
		Status:       domain.ProviderPending,
		BusinessName: "Drip Doctors",
		Price:        70,
	}
	if err := db.Create(&pending).Error; err != nil {
		log.Fatalf("create pending provider: %v", err)
	}

	// ================== TOKENS ==================
	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	fmt.Println()
	fmt.Println("Demo bearer tokens:")
	for _, u := range []struct {
		id   string
		role domain.UserRole
	}{
		{"admin-1", domain.RoleAdmin},
		{"client-1", domain.RoleClient},
		{"client-2", domain.RoleClient},
		{"provider-1", domain.RoleProvider},
		{"provider-3", domain.RoleProvider},
		{"provider-5", domain.RoleProvider},
	} {
		token, err := j.GenerateToken(u.id, string(u.role))
		if err != nil {
			log.Fatalf("token for %s: %v", u.id, err)
		}
		fmt.Printf("  %-11s %-8s %s\n", u.id, u.role, token)
	}

	fmt.Println()
	fmt.Println("Seed completed!")
	fmt.Printf("  Categories: %d\n", len(categories))
	fmt.Printf("  Providers:  %d approved, 1 pending\n", len(seeds))
}
