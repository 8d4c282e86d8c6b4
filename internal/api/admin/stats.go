package admin

import (
	"net/http"

	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/gin-gonic/gin"
)

type StatsResponse struct {
	Total           int64            `json:"total"`
	ByStatus        map[string]int64 `json:"por_status"`
	ActivePerPlan   map[string]int64 `json:"ativos_por_plano"`
	EstimatedMRRBRL float64          `json:"mrr_estimado"`
}

const noPlan = "Sem plano"

// BuildStats aggregates subscriber counts. MRR spreads each active plan's price
// over its months.
func BuildStats(counts []repository.StatusPlanCount) StatsResponse {
	stats := StatsResponse{
		ByStatus: map[string]int64{
			string(subscribers.StatusPending):   0,
			string(subscribers.StatusActive):    0,
			string(subscribers.StatusSuspended): 0,
			string(subscribers.StatusRejected):  0,
		},
		ActivePerPlan: map[string]int64{},
	}

	var mrrCents int64
	for _, row := range counts {
		stats.Total += row.Count
		stats.ByStatus[string(row.Status)] += row.Count
		if row.Status != subscribers.StatusActive {
			continue
		}

		name := noPlan
		if row.Plan != nil {
			if p, err := plans.Parse(*row.Plan); err == nil {
				info, _ := plans.Lookup(p)
				name = info.Label
				mrrCents += info.MonthlyPriceCents() * row.Count
			} else {
				name = *row.Plan
			}
		}
		stats.ActivePerPlan[name] += row.Count
	}
	stats.EstimatedMRRBRL = float64(mrrCents) / 100
	return stats
}

// GET /api/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.subscribers.CountByStatusAndPlan(c.Request.Context())
	if err != nil {
		h.log.Error("failed to count subscribers", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, BuildStats(counts))
}
