package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/localserve/internal/services/job"
)

type CategoryHandler struct {
	Jobs *job.JobService
}

func NewCategoryHandler(jobs *job.JobService) *CategoryHandler {
	return &CategoryHandler{Jobs: jobs}
}

// GetCategories lists the categories that currently have open jobs.
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.Jobs.Categories(c.UserContext())
	if err != nil {
		return err
	}
	if categories == nil {
		categories = []string{}
	}
	return ok(c, categories)
}
