package plans

import (
	"net/http"

	"acessonucleo-hub/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

type planResponse struct {
	plans.Info
	MonthlyPriceCents int64 `json:"monthly_price_cents"`
}

// GET /api/plans
func ListPlans(c *gin.Context) {
	all := plans.All()
	out := make([]planResponse, 0, len(all))
	for _, info := range all {
		out = append(out, planResponse{Info: info, MonthlyPriceCents: info.MonthlyPriceCents()})
	}
	c.JSON(http.StatusOK, out)
}
