// Package filter derives views over request listings without touching storage.
package filter

import (
	"strconv"
	"strings"

	"cityServiceDesk/models"
)

// All disables a filter.
const All = "all"

// Criteria selects requests by status and category. Empty or All values match everything.
// Category matches either the decimal category id or the category name.
type Criteria struct {
	Status   string
	Category string
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, All)
}

// Apply returns the requests satisfying every active criterion, preserving order.
// The result is a fresh slice; in is not modified.
func Apply(in []models.Request, c Criteria) []models.Request {
	out := make([]models.Request, 0, len(in))
	var wantStatus models.RequestStatus
	statusOn := active(c.Status)
	if statusOn {
		st, ok := models.ParseStatus(c.Status)
		if !ok {
			return out
		}
		wantStatus = st
	}
	categoryOn := active(c.Category)
	category := strings.TrimSpace(c.Category)
	for _, r := range in {
		if statusOn && r.Status != wantStatus {
			continue
		}
		if categoryOn && !matchCategory(r, category) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchCategory(r models.Request, category string) bool {
	if r.CategoryName == category {
		return true
	}
	id, err := strconv.ParseInt(category, 10, 64)
	return err == nil && id == r.CategoryID
}
