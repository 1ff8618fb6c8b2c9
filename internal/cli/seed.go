package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/utils"
)

// Fixture is the YAML document accepted by `marketctl seed`.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Jobs  []FixtureJob  `yaml:"jobs"`
}

type FixtureUser struct {
	Name      string   `yaml:"name"`
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	Role      string   `yaml:"role"`
	Phone     string   `yaml:"phone"`
	City      string   `yaml:"city"`
	Skills    []string `yaml:"skills"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

type FixtureJob struct {
	Client      string   `yaml:"client"` // email of an existing client
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Budget      string   `yaml:"budget"`
	Skills      []string `yaml:"skills"`
	City        string   `yaml:"city"`
	Latitude    *float64 `yaml:"latitude"`
	Longitude   *float64 `yaml:"longitude"`
}

type SeedResult struct {
	UsersCreated int
	UsersSkipped int
	JobsCreated  int
}

// Seed loads a fixture in one transaction. Users whose email already exists are skipped.
func Seed(ctx context.Context, gdb *gorm.DB, r io.Reader) (SeedResult, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return SeedResult{}, fmt.Errorf("parse fixture: %w", err)
	}

	var res SeedResult
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, fu := range fx.Users {
			created, err := seedUser(tx, fu)
			if err != nil {
				return fmt.Errorf("users[%d]: %w", i, err)
			}
			if created {
				res.UsersCreated++
			} else {
				res.UsersSkipped++
			}
		}
		for i, fj := range fx.Jobs {
			if err := seedJob(tx, fj); err != nil {
				return fmt.Errorf("jobs[%d]: %w", i, err)
			}
			res.JobsCreated++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

func seedUser(tx *gorm.DB, fu FixtureUser) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(fu.Email))
	if email == "" || fu.Name == "" || fu.Password == "" {
		return false, fmt.Errorf("name, email and password are required")
	}
	role := models.Role(strings.ToLower(fu.Role))
	switch role {
	case models.RoleClient, models.RoleProvider, models.RoleAdmin:
	case "":
		role = models.RoleClient
	default:
		return false, fmt.Errorf("unknown role %q", fu.Role)
	}

	var n int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	hash, err := utils.HashPassword(fu.Password)
	if err != nil {
		return false, err
	}
	u := models.User{
		Name:      fu.Name,
		Email:     email,
		Password:  hash,
		Role:      role,
		City:      fu.City,
		Skills:    datatypes.NewJSONSlice(lower(fu.Skills)),
		Latitude:  fu.Latitude,
		Longitude: fu.Longitude,
	}
	if fu.Phone != "" {
		u.Phone = &fu.Phone
	}
	return true, tx.Create(&u).Error
}

func seedJob(tx *gorm.DB, fj FixtureJob) error {
	var client models.User
	if err := tx.Where("email = ? AND role = ?", strings.ToLower(fj.Client), models.RoleClient).First(&client).Error; err != nil {
		return fmt.Errorf("client %q: %w", fj.Client, err)
	}
	if fj.Title == "" {
		return fmt.Errorf("title is required")
	}
	budget := decimal.Zero
	if fj.Budget != "" {
		var err error
		if budget, err = decimal.NewFromString(fj.Budget); err != nil {
			return fmt.Errorf("budget: %w", err)
		}
	}
	job := models.Job{
		ClientID:    client.ID,
		Title:       fj.Title,
		Description: fj.Description,
		Category:    strings.ToLower(fj.Category),
		Budget:      budget,
		Skills:      datatypes.NewJSONSlice(lower(fj.Skills)),
		City:        fj.City,
		Latitude:    fj.Latitude,
		Longitude:   fj.Longitude,
		Status:      models.JobOpen,
	}
	return tx.Create(&job).Error
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
